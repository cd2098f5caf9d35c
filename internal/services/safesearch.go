package services

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// likelihoodRank orders Vision likelihood names; unknown values rank 0.
var likelihoodRank = map[string]int{
	"VERY_UNLIKELY": 1,
	"UNLIKELY":      2,
	"POSSIBLE":      3,
	"LIKELY":        4,
	"VERY_LIKELY":   5,
}

// rejectAt is the lowest likelihood that rejects a profile photo.
const rejectAt = "LIKELY"

// SafeSearchResult holds Vision likelihoods per category. Only adult,
// violence and racy content reject a photo.
type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

// Flagged names the rejecting categories at or above rejectAt.
func (r *SafeSearchResult) Flagged() []string {
	var out []string
	for _, c := range []struct{ name, level string }{
		{"adult", r.Adult},
		{"violence", r.Violence},
		{"racy", r.Racy},
	} {
		if likelihoodRank[c.level] >= likelihoodRank[rejectAt] {
			out = append(out, c.name)
		}
	}
	return out
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return len(r.Flagged()) > 0
}

// SafeSearchDetector classifies an image stored at a gs:// URI.
type SafeSearchDetector interface {
	DetectSafeSearch(ctx context.Context, gcsURI string) (*SafeSearchResult, error)
}

// VisionSafeSearch is a SafeSearchDetector on the Cloud Vision REST API.
type VisionSafeSearch struct {
	images *vision.ImagesService
}

var _ SafeSearchDetector = (*VisionSafeSearch)(nil)

func NewVisionSafeSearch(ctx context.Context, opts ...option.ClientOption) (*VisionSafeSearch, error) {
	opts = append([]option.ClientOption{option.WithScopes(vision.CloudPlatformScope)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &VisionSafeSearch{images: svc.Images}, nil
}

func (v *VisionSafeSearch) DetectSafeSearch(ctx context.Context, gcsURI string) (*SafeSearchResult, error) {
	batch := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Source: &vision.ImageSource{GcsImageUri: gcsURI}},
			Features: []*vision.Feature{{Type: "SAFE_SEARCH_DETECTION"}},
		}},
	}
	resp, err := v.images.Annotate(batch).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 {
		return &SafeSearchResult{}, nil
	}

	first := resp.Responses[0]
	if first.Error != nil {
		return nil, fmt.Errorf("vision: %s", first.Error.Message)
	}
	ss := first.SafeSearchAnnotation
	if ss == nil {
		return &SafeSearchResult{}, nil
	}
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}
