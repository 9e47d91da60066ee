package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "purchasing/internal/core/context"
	"purchasing/internal/core/id"
	"purchasing/internal/domain/audit"
)

const auditTable = "sys_audit"

// CompressionAlgo specifies how a stored change set is encoded.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// auditRow is the stored shape of an audit entry.
type auditRow struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            audit.Action    `db:"action"`
	UserID            string          `db:"user_id"`
	UserEmail         string          `db:"user_email"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditRepo implements audit.Recorder on sys_audit.
// Change sets above the threshold are stored zstd-compressed.
type AuditRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType

	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Recorder = (*AuditRepo)(nil)

// NewAuditRepo creates the audit repository.
func NewAuditRepo(txm *TxManager) (*AuditRepo, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditRepo{
		txm:               txm,
		builder:           squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 4 * 1024,
	}, nil
}

// LogChange records one entry attributed to the caller in ctx.
func (r *AuditRepo) LogChange(ctx context.Context, entityType string, entityID id.ID, action audit.Action, changes map[string]any) error {
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	row := auditRow{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		CreatedAt:  time.Now().UTC(),
	}
	if user := appctx.GetUser(ctx); user != nil {
		row.UserID = user.UserID
		row.UserEmail = user.Email
	}
	r.encode(&row, raw)

	sql, args, err := r.builder.Insert(auditTable).SetMap(StructToMap(row)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

// History returns entries for one entity, newest first.
func (r *AuditRepo) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	q := r.builder.Select(ExtractDBColumns[auditRow]()...).
		From(auditTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []auditRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	entries := make([]audit.Entry, 0, len(rows))
	for _, row := range rows {
		changes, err := r.decode(row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, audit.Entry{
			ID:         row.ID,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Action:     row.Action,
			UserID:     row.UserID,
			Changes:    changes,
			CreatedAt:  row.CreatedAt,
		})
	}
	return entries, nil
}

func (r *AuditRepo) encode(row *auditRow, raw []byte) {
	if len(raw) <= r.compressThreshold {
		row.Changes = raw
		row.CompressionAlgo = CompressionNone
		return
	}
	row.ChangesCompressed = r.encoder.EncodeAll(raw, nil)
	row.CompressionAlgo = CompressionZstd
}

func (r *AuditRepo) decode(row auditRow) (json.RawMessage, error) {
	if row.CompressionAlgo != CompressionZstd || len(row.ChangesCompressed) == 0 {
		return row.Changes, nil
	}
	raw, err := r.decoder.DecodeAll(row.ChangesCompressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress changes: %w", err)
	}
	return raw, nil
}
