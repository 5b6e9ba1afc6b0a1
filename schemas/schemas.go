// Package schemas embeds the JSON Schemas for the files the publisher writes.
package schemas

import _ "embed"

// PublishingManifestFile is the file name of the manifest schema
const PublishingManifestFile = "publishing_manifest.schema.json"

// PublishingManifest is the JSON Schema for publishing_manifest_<runId>.json
//
//go:embed publishing_manifest.schema.json
var PublishingManifest string
