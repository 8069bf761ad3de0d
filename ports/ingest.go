package ports

import (
	"context"

	"churnpipe/domain/customer"
)

// BatchReader delivers one raw customer batch plus an audit summary. The
// audit is informational only: the pipeline logs it but never depends on it.
type BatchReader interface {
	ReadBatch(ctx context.Context) ([]customer.RawRecord, customer.IngestAudit, error)
}
