package gcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	compute "google.golang.org/api/compute/v1"
)

// mockMetadataAPI records calls and serves a canned instance.
type mockMetadataAPI struct {
	instance    *compute.Instance
	getErr      error
	setErr      error
	setMetadata *compute.Metadata
}

func (m *mockMetadataAPI) GetInstance(_ context.Context, _, _, _ string) (*compute.Instance, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.instance, nil
}

func (m *mockMetadataAPI) SetMetadata(_ context.Context, _, _, _ string, metadata *compute.Metadata) error {
	m.setMetadata = metadata
	return m.setErr
}

func statusValue(t *testing.T, metadata *compute.Metadata) RunStatusMetadata {
	t.Helper()
	for _, item := range metadata.Items {
		if item.Key == statusMetadataKey {
			var status RunStatusMetadata
			if err := json.Unmarshal([]byte(*item.Value), &status); err != nil {
				t.Fatalf("status value is not JSON: %v", err)
			}
			return status
		}
	}
	t.Fatalf("metadata key %s not found", statusMetadataKey)
	return RunStatusMetadata{}
}

func TestPublishStatus_InsertsKey(t *testing.T) {
	api := &mockMetadataAPI{
		instance: &compute.Instance{Metadata: &compute.Metadata{Fingerprint: "fp"}},
	}
	pub := NewComputeStatusPublisherWithAPI(api, "proj", "us-central1-a", "vm-1")

	err := pub.PublishStatus(context.Background(), RunStatusMetadata{
		Goal:              "build a parser",
		SessionsCompleted: 2,
		TotalActions:      37,
		MeaningfulEvents:  9,
	})
	if err != nil {
		t.Fatalf("PublishStatus failed: %v", err)
	}
	if api.setMetadata == nil {
		t.Fatal("SetMetadata not called")
	}

	status := statusValue(t, api.setMetadata)
	if status.SessionsCompleted != 2 || status.TotalActions != 37 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestPublishStatus_UpdatesExistingKey(t *testing.T) {
	old := `{"goal":"old","sessions_completed":1}`
	api := &mockMetadataAPI{
		instance: &compute.Instance{Metadata: &compute.Metadata{
			Items: []*compute.MetadataItems{
				{Key: "other-key", Value: &old},
				{Key: statusMetadataKey, Value: &old},
			},
		}},
	}
	pub := NewComputeStatusPublisherWithAPI(api, "proj", "us-central1-a", "vm-1")

	err := pub.PublishStatus(context.Background(), RunStatusMetadata{GoalComplete: true, SessionsCompleted: 3})
	if err != nil {
		t.Fatalf("PublishStatus failed: %v", err)
	}

	if len(api.setMetadata.Items) != 2 {
		t.Errorf("key duplicated: %d items", len(api.setMetadata.Items))
	}
	status := statusValue(t, api.setMetadata)
	if !status.GoalComplete || status.SessionsCompleted != 3 {
		t.Errorf("status not updated: %+v", status)
	}
}

func TestPublishStatus_PropagatesErrors(t *testing.T) {
	pub := NewComputeStatusPublisherWithAPI(&mockMetadataAPI{getErr: errors.New("boom")}, "p", "z", "i")
	if err := pub.PublishStatus(context.Background(), RunStatusMetadata{}); err == nil {
		t.Error("expected error from GetInstance failure")
	}

	api := &mockMetadataAPI{
		instance: &compute.Instance{Metadata: &compute.Metadata{}},
		setErr:   errors.New("denied"),
	}
	pub = NewComputeStatusPublisherWithAPI(api, "p", "z", "i")
	if err := pub.PublishStatus(context.Background(), RunStatusMetadata{}); err == nil {
		t.Error("expected error from SetMetadata failure")
	}
}
