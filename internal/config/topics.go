package config

const (
	// TopicIngestPage carries asynchronous page ingestion requests.
	TopicIngestPage = "ingest.page"

	// ChannelIngestWorker is the consumer channel of the ingest worker.
	ChannelIngestWorker = "webrag-worker"
)
