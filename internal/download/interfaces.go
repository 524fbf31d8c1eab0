package download

import (
	"context"

	"github.com/vodgrab/vodgrab/internal/encode"
	"github.com/vodgrab/vodgrab/internal/model"
	"github.com/vodgrab/vodgrab/internal/playback"
	"github.com/vodgrab/vodgrab/internal/segment"
)

// Resolver obtains a playback access grant for a descriptor
type Resolver interface {
	Resolve(ctx context.Context, descriptor model.ContentDescriptor) (*playback.Access, error)
}

// Fetcher retrieves manifests and segment data
type Fetcher interface {
	FetchManifest(ctx context.Context, playlistURL string) (*segment.Manifest, error)
	FetchSegment(ctx context.Context, seg segment.Segment, destPath string) (int64, error)
}

// Processor is the external media post-processing collaborator. A nil
// Processor skips the ENCODING stage and delivers the assembled file as is.
type Processor interface {
	ProbeDuration(ctx context.Context, filePath string) (float64, error)
	Remux(ctx context.Context, inputPath, outputPath string, opts encode.Options, onProgress func(seconds float64)) error
}
