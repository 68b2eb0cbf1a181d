package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for extraction and storage spans and metrics.
var (
	AttrFileName   = attribute.Key("extract.file_name")
	AttrFileFormat = attribute.Key("extract.format")
	AttrRecords    = attribute.Key("extract.records")
	AttrStatus     = attribute.Key("status")

	AttrStoreOp  = attribute.Key("store.operation")
	AttrModuleID = attribute.Key("module.id")
)
