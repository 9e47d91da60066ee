package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"purchasing/internal/core/entity"
	"purchasing/internal/core/id"
	"purchasing/internal/core/types"
)

type mockDocument struct {
	entity.Document
	SupplierID id.ID       `db:"supplier_id"`
	Total      types.Money `db:"total_amount"`
	Lines      []string    `db:"-"`
	scratch    string
}

func TestExtractDBColumns_WalksEmbeddedDocument(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	for _, expected := range []string{
		"id", "version", "created_at", "updated_at", "created_by", "updated_by",
		"number", "date", "supplier_id", "total_amount",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, 10)
}

func TestStructToMap_DocumentFields(t *testing.T) {
	now := time.Now().UTC()
	doc := mockDocument{
		Document:   entity.NewDocument("buyer"),
		SupplierID: id.New(),
		Total:      types.MustMoney("12.50"),
		Lines:      []string{"ignored"},
		scratch:    "ignored",
	}
	doc.Number = "PO-2026-00001"
	doc.Date = now
	doc.Version = 5

	m := StructToMap(&doc)

	assert.Equal(t, doc.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "buyer", m["created_by"])
	assert.Equal(t, "PO-2026-00001", m["number"])
	assert.Equal(t, now, m["date"])
	assert.Equal(t, doc.SupplierID, m["supplier_id"])
	assert.True(t, types.MustMoney("12.5").Equal(m["total_amount"].(types.Money)))
	assert.Len(t, m, 10)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
