package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func pod(name, namespace, podIP string, labels map[string]string) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: labels},
		Status:     corev1.PodStatus{PodIP: podIP},
	}
}

// TestKubernetesPodSource_Discover_FiltersByLabel covers the label-selector
// string built in Discover: only pods labeled app=<ServiceLabel> are
// returned, peers running a different service are ignored.
func TestKubernetesPodSource_Discover_FiltersByLabel(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		pod("stratus-0", "default", "10.0.0.1", map[string]string{"app": "stratus"}),
		pod("other-service-0", "default", "10.0.0.9", map[string]string{"app": "other-service"}),
	)

	src := &KubernetesPodSource{
		Clientset:    clientset,
		Namespace:    "default",
		ServiceLabel: "stratus",
		SelfPodName:  "stratus-1",
		JSONRPCPort:  3000,
		GRPCPort:     3777,
	}

	addrs, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "10.0.0.1", addrs[0].Host)
}

// TestKubernetesPodSource_Discover_ExcludesSelf covers self-exclusion by pod
// name: the pod matching SelfPodName never appears in the result even
// though it carries the matching label.
func TestKubernetesPodSource_Discover_ExcludesSelf(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		pod("stratus-0", "default", "10.0.0.1", map[string]string{"app": "stratus"}),
		pod("stratus-1", "default", "10.0.0.2", map[string]string{"app": "stratus"}),
	)

	src := &KubernetesPodSource{
		Clientset:    clientset,
		Namespace:    "default",
		ServiceLabel: "stratus",
		SelfPodName:  "stratus-1",
		JSONRPCPort:  3000,
		GRPCPort:     3777,
	}

	addrs, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "10.0.0.1", addrs[0].Host)
}

// TestKubernetesPodSource_Discover_SkipsEmptyPodIP covers the empty-PodIP
// skip: a matching pod that hasn't been assigned an IP yet (e.g. still
// scheduling) is silently dropped rather than producing a zero-value
// PeerAddress.
func TestKubernetesPodSource_Discover_SkipsEmptyPodIP(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		pod("stratus-0", "default", "", map[string]string{"app": "stratus"}),
		pod("stratus-1", "default", "10.0.0.2", map[string]string{"app": "stratus"}),
	)

	src := &KubernetesPodSource{
		Clientset:    clientset,
		Namespace:    "default",
		ServiceLabel: "stratus",
		SelfPodName:  "stratus-999",
		JSONRPCPort:  3000,
		GRPCPort:     3777,
	}

	addrs, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, "10.0.0.2", addrs[0].Host)
}

// TestKubernetesPodSource_Discover_PortsFromSource confirms the derived
// PeerAddress uses the source's configured ports, not anything read off the
// pod spec (spec.md §4.1: ports are fixed per-cluster, not per-pod).
func TestKubernetesPodSource_Discover_PortsFromSource(t *testing.T) {
	clientset := fake.NewSimpleClientset(
		pod("stratus-0", "default", "10.0.0.1", map[string]string{"app": "stratus"}),
	)

	src := &KubernetesPodSource{
		Clientset:    clientset,
		Namespace:    "default",
		ServiceLabel: "stratus",
		SelfPodName:  "stratus-1",
		JSONRPCPort:  3001,
		GRPCPort:     3778,
	}

	addrs, err := src.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, addrs, 1)
	assert.Equal(t, uint16(3001), addrs[0].JSONRPCPort)
	assert.Equal(t, uint16(3778), addrs[0].GRPCPort)
}
