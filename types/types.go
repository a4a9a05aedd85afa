package types

// JobType names one stage of the media pipeline.
type JobType string

const (
	JobDuplicateScan   JobType = "duplicate-scan"
	JobMetadataExtract JobType = "metadata-extract"
	JobThumbnail       JobType = "thumbnail"
	JobTranscode       JobType = "transcode"
	JobPin             JobType = "pin"
)

// PipelineStages is the fixed dispatch order of the stages for a newly uploaded asset.
var PipelineStages = []JobType{
	JobDuplicateScan,
	JobMetadataExtract,
	JobThumbnail,
	JobTranscode,
	JobPin,
}

func (t JobType) Valid() bool {
	for _, s := range PipelineStages {
		if s == t {
			return true
		}
	}
	return false
}

// AcceptedVideoTypes lists the mime types accepted at upload-init.
var AcceptedVideoTypes = map[string]bool{
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"video/x-msvideo": true,
}
