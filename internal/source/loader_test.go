package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"weekly-metrics/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const analyticsCSV = `"Date";"Sales Channel";"Gross Revenue";"Net Revenue";"Country"
2025-10-13;Online;100;90;Sweden
2025-10-14;Retail;50;N/A;Outlet
2025-10-20;Online;NULL;10;Germany
`

func TestParseFile_SemicolonWithQuotedHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.csv")
	writeFile(t, path, analyticsCSV)

	tbl, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Sales Channel", "Gross Revenue", "Net Revenue", "Country"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.Rows[1].Missing("Net Revenue"))
	assert.True(t, tbl.Rows[2].Missing("Gross Revenue"))
	assert.Equal(t, 100.0, tbl.Rows[0].Float("Gross Revenue"))
}

func TestParseFile_CommaAndTab(t *testing.T) {
	dir := t.TempDir()
	comma := filepath.Join(dir, "comma.csv")
	writeFile(t, comma, "Day,Sessions,Session country\n2025-10-13,120,Sweden\n")
	tab := filepath.Join(dir, "tab.csv")
	writeFile(t, tab, "Day\tSessions\n2025-10-13\t7\n2025-10-14\t8\n")

	c, err := ParseFile(comma)
	require.NoError(t, err)
	assert.Equal(t, []string{"Day", "Sessions", "Session country"}, c.Columns)

	tb, err := ParseFile(tab)
	require.NoError(t, err)
	assert.Equal(t, []string{"Day", "Sessions"}, tb.Columns)
	assert.Equal(t, 15.0, tb.Sum("Sessions"))
}

func TestParseFile_Latin1AndBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l1.csv")
	writeFile(t, path, "\xef\xbb\xbfCountry;Sessions\nK\xf6ln;3\n")
	tbl, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Country", tbl.Columns[0])
	assert.Equal(t, "Köln", tbl.Rows[0].String("Country"))
}

func TestParseFile_Windows1252(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cp1252.csv")
	writeFile(t, path, "Product Name;Gross Revenue\nGift card \x80 50;50\nMen\x92s parka \x96 black;120\n")
	tbl, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Gift card € 50", tbl.Rows[0].String("Product Name"))
	assert.Equal(t, "Men’s parka – black", tbl.Rows[1].String("Product Name"))
}

func TestParseFile_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Date", "Sales Channel", "Gross Revenue"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2025-10-13", "Online", 250}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, 250.0, tbl.Rows[0].Float("Gross Revenue"))
}

func TestLoader_WorkbookDateCells(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "analytics"), 0755))
	path := filepath.Join(root, "analytics", "export.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Date", "Sales Channel", "Gross Revenue", "Net Revenue"}))
	// Native datetime cell.
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{time.Date(2025, 10, 13, 9, 30, 0, 0, time.UTC), "Online", 100, 90}))
	// Serial with the built-in short date format.
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{45944, "Online", 50, 45}))
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "A3", "A3", style))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := NewLoader(root, false).Load(context.Background(), Analytics)
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "2025-42", tbl.Rows[0].String(table.WeekColumn))
	assert.Equal(t, "2025-42", tbl.Rows[1].String(table.WeekColumn))
	assert.Equal(t, "2025-10-14", tbl.Rows[1].String(table.DateColumn))
	assert.Equal(t, 150.0, tbl.Sum(ColGrossRevenue))
}

func TestParseFile_BrokenWorkbookIsParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.xlsx")
	writeFile(t, path, "definitely not a zip archive")

	_, err := ParseFile(path)
	assert.ErrorIs(t, err, ErrParseFailure)
}

func TestLoader_ConcatenatesFilesWithProvenance(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	writeFile(t, filepath.Join(root, "analytics", "w42.csv"), analyticsCSV)
	writeFile(t, filepath.Join(root, "analytics", "w43.csv"), "Date,Sales Channel,Gross Revenue,Net Revenue,Gender\n2025-10-21,Online,5,5,MEN\n")
	writeFile(t, filepath.Join(root, "analytics", "notes.txt"), "ignored")

	l := NewLoader(root, false)
	tbl, err := l.Load(context.Background(), Analytics)
	require.NoError(t, err)

	assert.Equal(t, 4, tbl.Len())
	assert.True(t, tbl.Has("Gender"))
	assert.True(t, tbl.Has("Country"))
	assert.True(t, tbl.Has(table.WeekColumn))
	assert.Equal(t, "w42.csv", tbl.Rows[0].String(table.SourceFileColumn))
	assert.Equal(t, "w43.csv", tbl.Rows[3].String(table.SourceFileColumn))
	assert.Equal(t, "analytics", tbl.Rows[3].String(table.SourceTypeColumn))
	assert.Equal(t, "2025-42", tbl.Rows[0].String(table.WeekColumn))
	assert.Equal(t, "2025-43", tbl.Rows[3].String(table.WeekColumn))
}

func TestLoader_LegacyLayouts(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "raw")
	require.NoError(t, os.MkdirAll(root, 0755))
	// Alias directory under root.
	writeFile(t, filepath.Join(root, "shopify", "s.csv"), "Day,Sessions\n2025-10-13,10\n")
	// Flat layout one level above root.
	writeFile(t, filepath.Join(base, "dema_gm2", "m.csv"), "Days,Gross margin 2 - Dema MTA\n2025-10-13,40\n")

	l := NewLoader(root, false)
	sessions, err := l.Load(context.Background(), EcommerceSessions)
	require.NoError(t, err)
	assert.Equal(t, 10.0, sessions.Sum("Sessions"))

	margin, err := l.Load(context.Background(), Margin)
	require.NoError(t, err)
	assert.Equal(t, 40.0, margin.Sum(ColGM2))
}

func TestLoader_SourceNotFound(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "margin"), 0755))

	l := NewLoader(root, false)
	_, err := l.Load(context.Background(), Analytics)
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = l.Load(context.Background(), Margin)
	assert.ErrorIs(t, err, ErrSourceNotFound, "an empty directory has no files")
}

func TestLoader_PrefersSnapshot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	dir := filepath.Join(root, "marketing-spend")
	writeFile(t, filepath.Join(dir, "spend.csv"), "Days;Marketing spend;Country\n2025-10-13;1;Sweden\n")

	snap := table.New("Days", "Marketing spend", "Country")
	snap.Append(table.Row{"Days": table.Text("2025-10-13"), "Marketing spend": table.Text("500"), "Country": table.Missing()})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "cache"), 0755))
	require.NoError(t, WriteSnapshot(context.Background(), filepath.Join(dir, "cache", "spend"+SnapshotSuffix), snap))

	l := NewLoader(root, false)
	tbl, err := l.Load(context.Background(), MarketingSpend)
	require.NoError(t, err)
	assert.Equal(t, 500.0, tbl.Sum(ColSpend))
	assert.True(t, tbl.Rows[0].Missing("Country"))
	assert.Equal(t, "marketing-spend", tbl.Rows[0].String(table.SourceTypeColumn))
}

func TestLoadAll_StrictRequiresEveryCoreKind(t *testing.T) {
	root := filepath.Join(t.TempDir(), "raw")
	writeFile(t, filepath.Join(root, "analytics", "a.csv"), analyticsCSV)

	_, err := NewLoader(root, true).LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrSourceNotFound)

	bundle, err := NewLoader(root, false).LoadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, bundle.Table(Analytics).Len())
	assert.Equal(t, 0, bundle.Table(Margin).Len())
}

func TestExtractFileMetadata(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "spend.csv")
	writeFile(t, good, "days;Marketing spend\n2025-10-15;1\n2025-10-13;2\nbad;3\n2025-10-19;4\n")

	md := ExtractFileMetadata(good, MarketingSpend)
	assert.Empty(t, md.Error)
	assert.Equal(t, "2025-10-13", md.FirstDate)
	assert.Equal(t, "2025-10-19", md.LastDate)
	assert.Equal(t, 4, md.RowCount)
	assert.Equal(t, "days", md.DateColumn)

	nodate := filepath.Join(dir, "nodate.csv")
	writeFile(t, nodate, "a,b\n1,2\n")
	md = ExtractFileMetadata(nodate, MarketingSpend)
	assert.NotEmpty(t, md.Error)
	assert.Equal(t, 1, md.RowCount)
}

func TestValidate(t *testing.T) {
	spend := table.New("Days", "Cost", table.SourceFileColumn, table.SourceTypeColumn)
	spend.Append(table.Row{"Days": table.Text("2025-10-13"), "Cost": table.Text("abc")})
	margin := table.New("Days", table.SourceFileColumn, table.SourceTypeColumn)

	report := Validate(Bundle{MarketingSpend: spend, Margin: margin}, true)
	assert.False(t, report.Valid)
	assert.True(t, report.Results[MarketingSpend].Valid, "spend numeric check only covers the canonical column")
	assert.Contains(t, report.Results[Margin].Errors, `missing required column "Gross margin 2 - Dema MTA"`)
}

func TestConfine(t *testing.T) {
	root := t.TempDir()

	got, err := Confine(root, "spend/2025.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "spend", "2025.csv"), got)

	got, err = Confine(root, filepath.Join(root, "a", "..", "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.csv"), got)

	for _, p := range []string{"", "../secret.csv", "/etc/passwd", "a/../../x.csv"} {
		_, err := Confine(root, p)
		assert.ErrorIs(t, err, ErrOutsideRoot, p)
	}
}
