package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"
)

// statusMetadataKey is the instance metadata key carrying run status.
const statusMetadataKey = "emergent-status"

// RunStatusMetadata is the JSON structure written to the instance
// metadata key so external pollers can follow a run without reading
// the workspace.
type RunStatusMetadata struct {
	Goal              string `json:"goal"`
	SessionsCompleted int    `json:"sessions_completed"`
	SessionsFailed    int    `json:"sessions_failed"`
	TotalActions      int    `json:"total_actions"`
	MeaningfulEvents  int    `json:"meaningful_events"`
	GoalComplete      bool   `json:"goal_complete"`
}

// StatusPublisher publishes run status to the hosting environment.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status RunStatusMetadata) error
	Close() error
}

// MetadataAPI is a thin interface around the Compute API methods needed
// for metadata updates. This enables testing with mocks.
type MetadataAPI interface {
	GetInstance(ctx context.Context, project, zone, instance string) (*compute.Instance, error)
	SetMetadata(ctx context.Context, project, zone, instance string, metadata *compute.Metadata) error
}

// computeMetadataAPI wraps the real Compute API service.
type computeMetadataAPI struct {
	service *compute.Service
}

func (a *computeMetadataAPI) GetInstance(ctx context.Context, project, zone, instance string) (*compute.Instance, error) {
	return a.service.Instances.Get(project, zone, instance).Context(ctx).Do()
}

func (a *computeMetadataAPI) SetMetadata(ctx context.Context, project, zone, instance string, metadata *compute.Metadata) error {
	_, err := a.service.Instances.SetMetadata(project, zone, instance, metadata).Context(ctx).Do()
	return err
}

// ComputeStatusPublisher implements StatusPublisher using the GCP
// Compute API.
type ComputeStatusPublisher struct {
	api      MetadataAPI
	project  string
	zone     string
	instance string
}

// NewComputeStatusPublisher creates a publisher that auto-discovers
// project, zone, and instance name from the GCP metadata server.
func NewComputeStatusPublisher(ctx context.Context, opts ...option.ClientOption) (*ComputeStatusPublisher, error) {
	service, err := compute.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create compute service: %w", err)
	}

	project, err := getInstanceMetadataField(ctx, "project/project-id")
	if err != nil {
		return nil, fmt.Errorf("failed to get project ID: %w", err)
	}

	zoneRaw, err := getInstanceMetadataField(ctx, "instance/zone")
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	// Zone comes as "projects/PROJECT/zones/ZONE", extract last segment
	parts := strings.Split(zoneRaw, "/")
	zone := parts[len(parts)-1]

	instance, err := getInstanceMetadataField(ctx, "instance/name")
	if err != nil {
		return nil, fmt.Errorf("failed to get instance name: %w", err)
	}

	return &ComputeStatusPublisher{
		api:      &computeMetadataAPI{service: service},
		project:  project,
		zone:     zone,
		instance: instance,
	}, nil
}

// NewComputeStatusPublisherWithAPI creates a publisher with an injected
// MetadataAPI implementation. Used for testing.
func NewComputeStatusPublisherWithAPI(api MetadataAPI, project, zone, instance string) *ComputeStatusPublisher {
	return &ComputeStatusPublisher{
		api:      api,
		project:  project,
		zone:     zone,
		instance: instance,
	}
}

// PublishStatus writes the run status to the instance metadata key. It
// fetches current metadata first to obtain the fingerprint required
// for atomic updates.
func (u *ComputeStatusPublisher) PublishStatus(ctx context.Context, status RunStatusMetadata) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	inst, err := u.api.GetInstance(ctx, u.project, u.zone, u.instance)
	if err != nil {
		return fmt.Errorf("failed to get instance metadata: %w", err)
	}

	statusJSON, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	statusStr := string(statusJSON)

	// Upsert the status key in metadata items
	metadata := inst.Metadata
	found := false
	for _, item := range metadata.Items {
		if item.Key == statusMetadataKey {
			item.Value = &statusStr
			found = true
			break
		}
	}
	if !found {
		metadata.Items = append(metadata.Items, &compute.MetadataItems{
			Key:   statusMetadataKey,
			Value: &statusStr,
		})
	}

	if err := u.api.SetMetadata(ctx, u.project, u.zone, u.instance, metadata); err != nil {
		return fmt.Errorf("failed to set instance metadata: %w", err)
	}

	return nil
}

// Close is a no-op for the compute publisher (the service has no Close method).
func (u *ComputeStatusPublisher) Close() error {
	return nil
}

// IsRunningOnGCP returns true if the GCP metadata server is reachable,
// indicating the code is running on a GCP instance. Uses a short timeout
// to avoid blocking startup on non-GCP environments.
func IsRunningOnGCP() bool {
	client := &http.Client{Timeout: 200 * time.Millisecond}
	req, err := http.NewRequest("GET", "http://metadata.google.internal/computeMetadata/v1/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// getInstanceMetadataField fetches a single field from the GCP metadata server.
// The field should be relative to the metadata root, e.g. "instance/name" or "project/project-id".
func getInstanceMetadataField(ctx context.Context, field string) (string, error) {
	url := fmt.Sprintf("http://metadata.google.internal/computeMetadata/v1/%s", field)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch metadata field %s: %w", field, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata server returned status %d for field %s", resp.StatusCode, field)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	value := strings.TrimSpace(string(body))
	if value == "" {
		return "", fmt.Errorf("empty value for metadata field %s", field)
	}

	return value, nil
}
