package input

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSVFirstColumn(t *testing.T) {
	in := "product_id,name\n 101 ,Kettle\n102,\"Pan, large\"\n\n101,dup\n103\n"

	ids, err := Parse(strings.NewReader(in), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102", "103"}, ids)
}

func TestParseSkipsBOM(t *testing.T) {
	ids, err := Parse(strings.NewReader("\xEF\xBB\xBFid\n7\n8\n"), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "8"}, ids)
}

func TestParseTSV(t *testing.T) {
	ids, err := Parse(strings.NewReader("5\tfoo\n6\tbar\n"), FormatTSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, ids)
}

func TestParseTextKeepsOpaqueIDs(t *testing.T) {
	// no numeric rows, so the first line is an id rather than a title
	ids, err := Parse(strings.NewReader("sku-a\nsku-b\n  \nsku-a\n"), FormatText)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku-a", "sku-b"}, ids)
}

func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader("\n  \n"), FormatText)
	assert.ErrorIs(t, err, ErrNoIdentifiers)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatExcel, DetectFormat("products-0-200000.xlsx"))
	assert.Equal(t, FormatTSV, DetectFormat("ids.TSV"))
	assert.Equal(t, FormatText, DetectFormat("ids.txt"))
	assert.Equal(t, FormatCSV, DetectFormat("ids.csv"))
	assert.Equal(t, FormatCSV, DetectFormat("-"))
}

func TestLoadExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.xlsx")

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "id"))
	require.NoError(t, f.SetCellValue(sheet, "A2", 275149))
	require.NoError(t, f.SetCellValue(sheet, "A3", "275150"))
	require.NoError(t, f.SetCellValue(sheet, "B3", "ignored"))
	require.NoError(t, f.SetCellValue(sheet, "A5", 275151))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	ids, err := Load(path, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"275149", "275150", "275151"}, ids)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ids.csv")
	require.NoError(t, os.WriteFile(path, []byte("1\n2\n3\n"), 0644))

	ids, err := Load(path, FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"), FormatAuto)
	assert.Error(t, err)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"b", "a", "c"}, Dedupe([]string{"b", "a", "b", "c", "a"}))
	assert.Empty(t, Dedupe(nil))
}
