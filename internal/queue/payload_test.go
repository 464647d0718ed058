package queue_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planwise/planwise-api/internal/queue"
)

const validPlanID = "550e8400-e29b-41d4-a716-446655440000"

func validPayload() queue.Payload {
	return queue.Payload{
		PlanID:   validPlanID,
		Channels: []string{"amazon"},
		Opportunities: []queue.Opportunity{
			{ID: "1", Title: "X", Phase: "1"},
		},
		Metadata: queue.Metadata{CreatedBy: "u1"},
	}
}

func TestValidatePayloadAcceptsValidPayload(t *testing.T) {
	payload := validPayload()
	assert.NoError(t, queue.ValidatePayload(&payload))
}

func TestValidatePayloadAcceptsEmptyOpportunities(t *testing.T) {
	payload := validPayload()
	payload.Opportunities = nil
	assert.NoError(t, queue.ValidatePayload(&payload))
}

func TestValidatePayloadRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*queue.Payload)
		wantMsg string
	}{
		{
			name:    "missing plan id",
			mutate:  func(p *queue.Payload) { p.PlanID = "" },
			wantMsg: "PlanID is required",
		},
		{
			name:    "non-uuid plan id",
			mutate:  func(p *queue.Payload) { p.PlanID = "not-a-uuid" },
			wantMsg: "PlanID must be a valid UUID",
		},
		{
			name:    "nil channels",
			mutate:  func(p *queue.Payload) { p.Channels = nil },
			wantMsg: "Channels is required",
		},
		{
			name:    "empty channels",
			mutate:  func(p *queue.Payload) { p.Channels = []string{} },
			wantMsg: "Channels must contain at least 1 element(s)",
		},
		{
			name:    "blank channel entry",
			mutate:  func(p *queue.Payload) { p.Channels = []string{""} },
			wantMsg: "Channels[0] is required",
		},
		{
			name: "opportunity missing id",
			mutate: func(p *queue.Payload) {
				p.Opportunities = []queue.Opportunity{{Title: "X", Phase: "1"}}
			},
			wantMsg: "Opportunities[0].ID is required",
		},
		{
			name: "opportunity missing title",
			mutate: func(p *queue.Payload) {
				p.Opportunities = []queue.Opportunity{{ID: "1", Phase: "1"}}
			},
			wantMsg: "Opportunities[0].Title is required",
		},
		{
			name: "opportunity invalid phase",
			mutate: func(p *queue.Payload) {
				p.Opportunities = []queue.Opportunity{{ID: "1", Title: "X", Phase: "4"}}
			},
			wantMsg: "Opportunities[0].Phase must be one of [1 2 3]",
		},
		{
			name:    "missing created by",
			mutate:  func(p *queue.Payload) { p.Metadata.CreatedBy = "" },
			wantMsg: "Metadata.CreatedBy is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			tt.mutate(&payload)

			err := queue.ValidatePayload(&payload)
			require.Error(t, err)

			var vErr *queue.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.Violations, tt.wantMsg)
		})
	}
}

func TestValidatePayloadEnumeratesAllViolations(t *testing.T) {
	payload := queue.Payload{
		PlanID:   "nope",
		Channels: []string{},
		Opportunities: []queue.Opportunity{
			{ID: "", Title: "", Phase: "9"},
		},
	}

	err := queue.ValidatePayload(&payload)
	require.Error(t, err)

	var vErr *queue.ValidationError
	require.ErrorAs(t, err, &vErr)

	// One violation per broken field, all reported together.
	assert.GreaterOrEqual(t, len(vErr.Violations), 5)
	assert.Contains(t, err.Error(), "payload validation failed")
}

func TestValidatePayloadNil(t *testing.T) {
	err := queue.ValidatePayload(nil)
	var vErr *queue.ValidationError
	require.ErrorAs(t, err, &vErr)
}
