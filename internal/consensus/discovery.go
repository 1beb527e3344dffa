package consensus

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// ClusterAPISource discovers peer addresses from an external directory.
// PeerRegistry unions its results with the static peer list (spec.md §4.1).
type ClusterAPISource interface {
	Discover(ctx context.Context) ([]PeerAddress, error)
}

// KubernetesPodSource discovers peers by listing pods in the current
// namespace labeled "app=<ServiceLabel>", excluding the pod this process
// runs in, and deriving an address from each pod's IP with the fixed
// jsonrpc/grpc ports (spec.md §4.1).
type KubernetesPodSource struct {
	Clientset   kubernetes.Interface
	Namespace   string
	ServiceLabel string
	SelfPodName string
	JSONRPCPort uint16
	GRPCPort    uint16
}

// NewKubernetesPodSource builds a source using in-cluster configuration.
// Returns an error (logged as a discovery warning by the caller, per
// spec.md §4.1/§7) when not running inside a cluster.
func NewKubernetesPodSource(cfg *Config) (*KubernetesPodSource, error) {
	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("consensus: cluster-api discovery unavailable: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("consensus: building kubernetes client: %w", err)
	}
	return &KubernetesPodSource{
		Clientset:    clientset,
		Namespace:    cfg.Namespace,
		ServiceLabel: cfg.ServiceLabel,
		SelfPodName:  cfg.NodeName,
		JSONRPCPort:  cfg.JSONRPCPort,
		GRPCPort:     cfg.GRPCPort,
	}, nil
}

// Discover implements ClusterAPISource.
func (s *KubernetesPodSource) Discover(ctx context.Context) ([]PeerAddress, error) {
	pods, err := s.Clientset.CoreV1().Pods(s.Namespace).List(ctx, metav1.ListOptions{
		LabelSelector: fmt.Sprintf("app=%s", s.ServiceLabel),
	})
	if err != nil {
		return nil, fmt.Errorf("consensus: listing pods: %w", err)
	}

	addrs := make([]PeerAddress, 0, len(pods.Items))
	for _, pod := range pods.Items {
		if pod.Name == s.SelfPodName {
			continue
		}
		if pod.Status.PodIP == "" {
			continue
		}
		addrs = append(addrs, PeerAddress{
			Host:        pod.Status.PodIP,
			JSONRPCPort: s.JSONRPCPort,
			GRPCPort:    s.GRPCPort,
		})
	}
	return addrs, nil
}
