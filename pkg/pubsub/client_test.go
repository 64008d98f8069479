package pubsub

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		project, name, want string
	}{
		{"shop-prod", "shop-order-events", "projects/shop-prod/topics/shop-order-events"},
		{"shop-prod", " shop-catalog-events ", "projects/shop-prod/topics/shop-catalog-events"},
		{"shop-prod", "projects/other/topics/x", "projects/other/topics/x"},
		{"", "shop-order-events", ""},
		{"shop-prod", "  ", ""},
	}
	for _, tc := range cases {
		if got := topicResourceName(tc.project, tc.name); got != tc.want {
			t.Fatalf("topicResourceName(%q, %q) = %q, want %q", tc.project, tc.name, got, tc.want)
		}
	}
}

func TestTopicNamesSkipsBlank(t *testing.T) {
	t.Parallel()

	names := topicNames(config.PubSubConfig{OrdersTopic: "orders", CatalogTopic: "  "})
	if len(names) != 1 || names[0] != "orders" {
		t.Fatalf("unexpected topics %v", names)
	}
}

func TestClientOptionsPreferInlineCredentials(t *testing.T) {
	t.Parallel()

	require.Empty(t, clientOptions(config.GCPConfig{ProjectID: "shop-prod"}))
	require.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/secrets/sa.json"}), 1)
	require.Len(t, clientOptions(config.GCPConfig{
		CredentialsJSON:        `{"type":"service_account"}`,
		ApplicationCredentials: "/secrets/sa.json",
	}), 1)
}

func TestNewClientRequiresProject(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), config.GCPConfig{ProjectID: " "}, config.PubSubConfig{}, nil)
	require.True(t, errors.Is(err, errProjectIDRequired))
}

func TestNilClientIsSafe(t *testing.T) {
	t.Parallel()

	var c *Client
	require.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	_, err := c.Publish(context.Background(), "orders", "key", nil, nil)
	require.ErrorIs(t, err, errNotInitialized)
	require.NoError(t, c.Close())
}
