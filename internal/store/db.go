package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"invoice-export-service/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the source database with the queries the exporters need.
type DB struct {
	*sql.DB
}

// Open opens the source database. The connection pool is shared, but
// export workers check out dedicated connections via Conn so partitions
// never contend on a single session.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open source database: %w", err)
	}
	return &DB{db}, nil
}

// InitSchema creates the source tables if they do not exist. Production
// deployments point at an existing database; this keeps local runs and
// tests self-contained.
func (db *DB) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS t_invoice (
		fid INTEGER PRIMARY KEY AUTOINCREMENT,
		ftenant_id TEXT NOT NULL,
		fcountry TEXT,
		finvoice_no TEXT,
		fissue_date DATETIME,
		fissue_status INTEGER NOT NULL DEFAULT 0,
		fext_field TEXT,
		fupdate_time DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_invoice_tenant ON t_invoice(ftenant_id, fcountry);
	CREATE INDEX IF NOT EXISTS idx_invoice_update ON t_invoice(fupdate_time);

	CREATE TABLE IF NOT EXISTS t_code_info (
		fid TEXT PRIMARY KEY,
		fcountry TEXT,
		fcode_type TEXT NOT NULL,
		fcode TEXT NOT NULL,
		fname TEXT,
		fdesc TEXT,
		fsystem INTEGER NOT NULL DEFAULT 0,
		factive INTEGER NOT NULL DEFAULT 1,
		fdelete INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS t_currency (
		fcurrency_code TEXT PRIMARY KEY,
		fname TEXT,
		fenglish_name TEXT,
		fsymbol TEXT,
		funit_precision INTEGER NOT NULL DEFAULT 2,
		famount_precision INTEGER NOT NULL DEFAULT 2
	);

	CREATE TABLE IF NOT EXISTS t_invoice_type (
		fid TEXT PRIMARY KEY,
		finvoice_code TEXT NOT NULL,
		fdescription_en TEXT,
		fdescription_cn TEXT,
		fselfbilled INTEGER NOT NULL DEFAULT 0,
		ftax_type TEXT,
		fcountry_name TEXT,
		fcountry_code TEXT,
		factive INTEGER NOT NULL DEFAULT 1,
		fcreate_time DATETIME,
		fupdate_time DATETIME
	);
	`
	_, err := db.Exec(schema)
	return err
}

// eligibleInvoice filters to rows that can actually be exported: issued
// (fissue_status = 3) with a non-empty invoice number, payload and date.
const eligibleInvoice = `
	fissue_status = 3
	AND fext_field IS NOT NULL AND LENGTH(fext_field) > 0
	AND finvoice_no IS NOT NULL AND LENGTH(finvoice_no) > 0
	AND fissue_date IS NOT NULL`

// TenantCountryGroups enumerates the distinct (tenant, country) partitions
// that have eligible invoices, with counts. An empty tenantID enumerates
// all tenants.
func (db *DB) TenantCountryGroups(ctx context.Context, tenantID string) ([]model.Partition, error) {
	query := `
		SELECT ftenant_id,
		       IFNULL(NULLIF(fcountry, ''), 'UNKNOWN') AS fcountry,
		       COUNT(*) AS invoice_count
		FROM t_invoice
		WHERE ` + eligibleInvoice
	args := []interface{}{}
	if tenantID != "" {
		query += ` AND ftenant_id = ?`
		args = append(args, tenantID)
	}
	query += `
		GROUP BY ftenant_id, fcountry
		ORDER BY ftenant_id, fcountry`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("enumerate partitions: %w", err)
	}
	defer rows.Close()

	var groups []model.Partition
	for rows.Next() {
		var p model.Partition
		if err := rows.Scan(&p.TenantID, &p.Country, &p.InvoiceCount); err != nil {
			return nil, err
		}
		groups = append(groups, p)
	}
	return groups, rows.Err()
}

// InvoicesForPartition loads the eligible invoices of one tenant-country
// group over a dedicated connection. A non-nil window restricts rows to
// fupdate_time in (After, Until].
func (db *DB) InvoicesForPartition(ctx context.Context, conn *sql.Conn, p model.Partition, window *model.TimeWindow) ([]model.Invoice, error) {
	query := `
		SELECT finvoice_no,
		       strftime('%Y%m%d', fissue_date) AS issue_date,
		       fext_field,
		       fupdate_time
		FROM t_invoice
		WHERE ` + eligibleInvoice + `
		  AND ftenant_id = ?`
	args := []interface{}{p.TenantID}

	if p.Country == "UNKNOWN" {
		query += ` AND (fcountry IS NULL OR fcountry = '')`
	} else {
		query += ` AND fcountry = ?`
		args = append(args, p.Country)
	}
	if window != nil {
		query += ` AND fupdate_time > ? AND fupdate_time <= ?`
		args = append(args, window.After, window.Until)
	}
	query += ` ORDER BY fissue_date, finvoice_no`

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invoices for %s/%s: %w", p.TenantID, p.Country, err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var payload string
		var updateTime sql.NullTime
		if err := rows.Scan(&inv.InvoiceNo, &inv.IssueDate, &payload, &updateTime); err != nil {
			return nil, err
		}
		inv.Payload = []byte(payload)
		if updateTime.Valid {
			inv.UpdateTime = updateTime.Time
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// CodeCountries lists the distinct countries that have active codes of the
// given type. NULL or empty country collapses to "global".
func (db *DB) CodeCountries(ctx context.Context, codeType string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT IFNULL(NULLIF(fcountry, ''), 'global')
		FROM t_code_info
		WHERE factive = 1 AND fdelete = 1 AND fcode_type = ?
		ORDER BY 1`, codeType)
	if err != nil {
		return nil, fmt.Errorf("list code countries: %w", err)
	}
	defer rows.Close()

	var countries []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		countries = append(countries, c)
	}
	return countries, rows.Err()
}

// CodesByCountry loads the active codes of one type for one country.
func (db *DB) CodesByCountry(ctx context.Context, codeType, country string) ([]model.CodeInfo, error) {
	query := `
		SELECT fid, IFNULL(fcountry, ''), fcode_type, fcode,
		       IFNULL(fname, ''), IFNULL(fdesc, ''), fsystem, factive
		FROM t_code_info
		WHERE factive = 1 AND fdelete = 1 AND fcode_type = ?`
	args := []interface{}{codeType}
	if country == "global" {
		query += ` AND (fcountry IS NULL OR fcountry = '')`
	} else {
		query += ` AND fcountry = ?`
		args = append(args, country)
	}
	query += ` ORDER BY fcode`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query codes %s/%s: %w", codeType, country, err)
	}
	defer rows.Close()

	var codes []model.CodeInfo
	for rows.Next() {
		var c model.CodeInfo
		if err := rows.Scan(&c.ID, &c.Country, &c.CodeType, &c.Code, &c.Name, &c.Description, &c.IsSystem, &c.Active); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Currencies loads the full currency table.
func (db *DB) Currencies(ctx context.Context) ([]model.Currency, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT fcurrency_code, IFNULL(fname, ''), IFNULL(fenglish_name, ''),
		       IFNULL(fsymbol, ''), funit_precision, famount_precision
		FROM t_currency
		ORDER BY fcurrency_code`)
	if err != nil {
		return nil, fmt.Errorf("query currencies: %w", err)
	}
	defer rows.Close()

	var currencies []model.Currency
	for rows.Next() {
		var c model.Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.EnglishName, &c.Symbol, &c.UnitPrecision, &c.AmountPrecision); err != nil {
			return nil, err
		}
		currencies = append(currencies, c)
	}
	return currencies, rows.Err()
}

// InvoiceTypes loads the active invoice types.
func (db *DB) InvoiceTypes(ctx context.Context) ([]model.InvoiceType, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT fid, finvoice_code, IFNULL(fdescription_en, ''), IFNULL(fdescription_cn, ''),
		       fselfbilled, IFNULL(ftax_type, ''), IFNULL(fcountry_name, ''),
		       IFNULL(fcountry_code, ''), factive, fcreate_time, fupdate_time
		FROM t_invoice_type
		WHERE factive = 1
		ORDER BY finvoice_code`)
	if err != nil {
		return nil, fmt.Errorf("query invoice types: %w", err)
	}
	defer rows.Close()

	var types []model.InvoiceType
	for rows.Next() {
		var t model.InvoiceType
		var createTime, updateTime sql.NullTime
		if err := rows.Scan(&t.ID, &t.InvoiceCode, &t.DescriptionEn, &t.DescriptionCn,
			&t.SelfBilled, &t.TaxType, &t.CountryName, &t.CountryCode, &t.Active,
			&createTime, &updateTime); err != nil {
			return nil, err
		}
		if createTime.Valid {
			t.CreateTime = createTime.Time.UTC().Format(time.RFC3339)
		}
		if updateTime.Valid {
			t.UpdateTime = updateTime.Time.UTC().Format(time.RFC3339)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// InsertInvoice inserts one invoice row. Used by fixtures and local
// seeding; the exporters never write to the source store. An empty
// country is stored as NULL and surfaces as the UNKNOWN partition.
func (db *DB) InsertInvoice(tenantID, country, invoiceNo string, issueDate time.Time, status int, payload string, updateTime time.Time) error {
	var c sql.NullString
	if country != "" {
		c = sql.NullString{String: country, Valid: true}
	}
	_, err := db.Exec(`
		INSERT INTO t_invoice (ftenant_id, fcountry, finvoice_no, fissue_date, fissue_status, fext_field, fupdate_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenantID, c, invoiceNo, issueDate, status, payload, updateTime)
	return err
}
