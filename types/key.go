package types

import (
	"fmt"
	"path"
	"strings"
)

// GetVideoKey returns the storage key of the uploaded original.
func GetVideoKey(assetID, filename string) string {
	return fmt.Sprintf("videos/%s/%s", assetID, sanitizeFilename(filename))
}

// GetUploadKey returns the storage key of one direct upload of the original.
func GetUploadKey(assetID, uploadID, filename string) string {
	return fmt.Sprintf("videos/%s/%s/%s", assetID, uploadID, sanitizeFilename(filename))
}

func GetThumbnailKey(assetID string) string {
	return fmt.Sprintf("thumbnails/%s.jpg", assetID)
}

func GetRenditionKey(assetID string) string {
	return fmt.Sprintf("renditions/%s.mp4", assetID)
}

func GetVideoPinName(assetID string) string {
	return fmt.Sprintf("video-%s", assetID)
}

func GetMetadataPinName(assetID string) string {
	return fmt.Sprintf("metadata-%s", assetID)
}

// IPFSURI formats a content identifier as an ipfs:// uri.
func IPFSURI(cid string) string {
	return "ipfs://" + cid
}

func sanitizeFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "original"
	}
	return name
}
