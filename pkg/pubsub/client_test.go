package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/scrapfield-backend/pkg/config"
)

func TestTopicResourceName(t *testing.T) {
	cases := []struct {
		name, project, topic, want string
	}{
		{"short id", "proj", "sf-work-order-events", "projects/proj/topics/sf-work-order-events"},
		{"trimmed", "proj", "  events ", "projects/proj/topics/events"},
		{"full name kept", "other", "projects/proj/topics/events", "projects/proj/topics/events"},
		{"empty topic", "proj", " ", ""},
		{"missing project", "", "events", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, topicResourceName(tc.project, tc.topic))
		})
	}
}

func TestNewClientRequiresProjectAndTopic(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{WorkOrdersTopic: "events"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), config.GCPConfig{ProjectID: "proj"}, config.PubSubConfig{}, nil)
	require.ErrorIs(t, err, errNoTopics)
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	_, err := c.Send(context.Background(), Message{Topic: "events"})
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
}
