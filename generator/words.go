package generator

// Vocabulary for span and service names.

var verbs = []string{
	"build", "compact", "download", "encode", "export", "fetch", "import", "index",
	"merge", "migrate", "publish", "render", "replicate", "resize", "scan", "sync",
	"train", "transcode", "upload", "verify",
}

var nouns = []string{
	"archive", "batch", "bucket", "catalog", "checkpoint", "dataset", "image", "invoice",
	"ledger", "manifest", "model", "partition", "report", "segment", "snapshot", "table",
	"thumbnail", "video", "volume", "warehouse",
}

var services = []string{
	"billing", "etl", "ingest", "media", "ml-pipeline", "reporting", "search", "storage",
}
