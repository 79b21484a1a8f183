package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quorum/pkg/domain"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Evidence.Timeout)
	assert.Equal(t, domain.GeoLevelConstituency, cfg.Policy.MinimumApprovalLevel)
	assert.True(t, cfg.Policy.RequireGeographyForActivation)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "membership.lifecycle", cfg.Kafka.Topic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("QUORUM_ADDR", ":9090")
	t.Setenv("QUORUM_KAFKA_BROKERS", "  kafka-1:9092 ,kafka-2:9092, kafka-1:9092,")
	t.Setenv("QUORUM_MINIMUM_APPROVAL_LEVEL", "WARD")
	t.Setenv("QUORUM_REQUIRE_LEAF_GEOGRAPHY", "false")
	t.Setenv("QUORUM_EVIDENCE_TIMEOUT", "750ms")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, domain.GeoLevelWard, cfg.Policy.MinimumApprovalLevel)
	assert.False(t, cfg.Policy.RequireGeographyForActivation)
	assert.Equal(t, 750*time.Millisecond, cfg.Evidence.Timeout)
}

func TestDuesParsing(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected map[string]int64
	}{
		{name: "empty", value: "", expected: map[string]int64{}},
		{name: "single pair", value: "ORD=500", expected: map[string]int64{"ORD": 500}},
		{
			name:     "multiple pairs with whitespace",
			value:    " ord=500 , STU=100",
			expected: map[string]int64{"ORD": 500, "STU": 100},
		},
		{name: "malformed pairs skipped", value: "ORD=abc,STU", expected: map[string]int64{}},
		{name: "negative amounts skipped", value: "ORD=-5", expected: map[string]int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("QUORUM_MINIMUM_DUES", tt.value)
			assert.Equal(t, tt.expected, dues("QUORUM_MINIMUM_DUES"))
		})
	}
}
