// Package document_repo provides the PostgreSQL implementation of the document repository.
// All kinds share one header table and one line table.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"merchledger/internal/core/apperror"
	"merchledger/internal/core/id"
	"merchledger/internal/domain/documents"
	"merchledger/internal/infrastructure/storage/postgres"
)

const (
	documentsTable = "doc_documents"
	linesTable     = "doc_document_lines"
)

var lineColumns = []string{
	"document_id", "line_no", "product_id", "quantity", "unit_price",
	"cost_price_at_time", "total", "warehouse_id", "cost_price_pending",
	"counted_quantity", "book_quantity",
}

// DocumentRepo implements documents.Repository.
type DocumentRepo struct {
	txm        *postgres.TxManager
	selectCols []string
}

var _ documents.Repository = (*DocumentRepo)(nil)

// NewDocumentRepo creates a new document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{
		txm:        txm,
		selectCols: postgres.ExtractDBColumns[documents.Document](),
	}
}

// Builder returns a new squirrel builder.
func (r *DocumentRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Create inserts a new document with its lines.
func (r *DocumentRepo) Create(ctx context.Context, doc *documents.Document) error {
	data := postgres.StructToMap(doc)
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().Insert(documentsTable).SetMap(filtered).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("document", "number", doc.Number).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", documentsTable, err)
	}

	return r.saveLines(ctx, doc)
}

// Update rewrites header and lines with optimistic locking.
// On success doc.Version matches the stored row.
func (r *DocumentRepo) Update(ctx context.Context, doc *documents.Document) error {
	data := postgres.StructToMap(doc)

	// Exclude immutable and repo-managed fields
	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "created_at", "created_by", "kind", "number", "version":
			continue
		}
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	sql, args, err := r.Builder().
		Update(documentsTable).
		SetMap(filtered).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	result, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", documentsTable, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("document", doc.ID.String())
	}
	doc.Version++

	if _, err := querier.Exec(ctx, "DELETE FROM "+linesTable+" WHERE document_id = $1", doc.ID); err != nil {
		return fmt.Errorf("delete existing lines: %w", err)
	}
	return r.saveLines(ctx, doc)
}

// saveLines inserts lines, over COPY when inside a transaction.
func (r *DocumentRepo) saveLines(ctx context.Context, doc *documents.Document) error {
	if len(doc.Items) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(doc.Items))
	for _, l := range doc.Items {
		rows = append(rows, []any{
			doc.ID, l.LineNo, l.ProductID, l.Quantity, l.UnitPrice,
			l.CostPriceAtTime, l.Total, l.WarehouseID, l.CostPricePending,
			l.CountedQuantity, l.BookQuantity,
		})
	}

	if r.txm.GetTx(ctx) != nil {
		inserter := postgres.NewBatchInserter(r.txm)
		if _, err := inserter.CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy lines: %w", err)
		}
		return nil
	}

	q := r.Builder().Insert(linesTable).Columns(lineColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}
	return nil
}

func (r *DocumentRepo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().Select(r.selectCols...).From(documentsTable)
}

func (r *DocumentRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, key string) (*documents.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &documents.Document{}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("document", key)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	if err := r.loadLines(ctx, []*documents.Document{doc}); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetByID retrieves a document by ID.
func (r *DocumentRepo) GetByID(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

// GetForUpdate retrieves a document with row lock.
func (r *DocumentRepo) GetForUpdate(ctx context.Context, docID id.ID) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}).Suffix("FOR UPDATE"), docID.String())
}

// GetByNumber retrieves a document by number.
func (r *DocumentRepo) GetByNumber(ctx context.Context, number string) (*documents.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"number": number}), number)
}

// List retrieves documents newest first.
func (r *DocumentRepo) List(ctx context.Context, filter documents.ListFilter) (documents.ListResult, error) {
	result := documents.ListResult{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Items:  []*documents.Document{},
	}

	q := r.listQuery(filter)

	countSQL, countArgs, err := r.Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	if err := r.loadLines(ctx, result.Items); err != nil {
		return result, err
	}
	return result, nil
}

// ListPendingCost returns live invoices holding a pending-cost line of productID.
func (r *DocumentRepo) ListPendingCost(ctx context.Context, productID id.ID) ([]*documents.Document, error) {
	sql, args, err := r.pendingCostQuery(productID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []*documents.Document
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("list pending cost: %w", err)
	}
	if err := r.loadLines(ctx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// listQuery applies filter to the header select, without ordering or paging.
func (r *DocumentRepo) listQuery(filter documents.ListFilter) squirrel.SelectBuilder {
	q := r.baseSelect()
	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.Kind != "" {
		q = q.Where(squirrel.Eq{"kind": filter.Kind})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.SourceDocumentID != nil {
		q = q.Where(squirrel.Eq{"source_document_id": *filter.SourceDocumentID})
	}
	return q
}

func (r *DocumentRepo) pendingCostQuery(productID id.ID) squirrel.SelectBuilder {
	return r.baseSelect().
		Where(squirrel.Eq{"kind": documents.KindCustomerInvoice, "deletion_mark": false}).
		Where(squirrel.Expr(
			"EXISTS (SELECT 1 FROM "+linesTable+" l WHERE l.document_id = "+documentsTable+".id AND l.product_id = ? AND l.cost_price_pending)",
			productID,
		)).
		OrderBy("number")
}

type lineRow struct {
	DocumentID id.ID `db:"document_id"`
	documents.LineItem
}

// loadLines fills Items of docs with one query.
func (r *DocumentRepo) loadLines(ctx context.Context, docs []*documents.Document) error {
	if len(docs) == 0 {
		return nil
	}

	byID := make(map[id.ID]*documents.Document, len(docs))
	ids := make([]id.ID, 0, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}

	sql, args, err := r.Builder().
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"document_id": ids}).
		OrderBy("document_id", "line_no").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lines query: %w", err)
	}

	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("get lines: %w", err)
	}
	for _, row := range rows {
		if d, ok := byID[row.DocumentID]; ok {
			d.Items = append(d.Items, row.LineItem)
		}
	}
	return nil
}
