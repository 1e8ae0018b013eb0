package importer_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/warp/report-engine/importer"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadRoster_HeaderColumn(t *testing.T) {
	// GIVEN: A sheet whose second column is headed "Nombre del Estudiante"
	// WHEN: The roster is read
	// THEN: That column is used, the header skipped, names trimmed and deduplicated

	buf := workbook(t, [][]any{
		{"No.", "Nombre del Estudiante", "Sexo"},
		{1, "  Pérez   Ana ", "F"},
		{2, "Gómez Luis", "M"},
		{3, "", "M"},
		{4, "Pérez Ana", "F"},
	})

	names, err := importer.ReadRoster(buf)

	require.NoError(t, err)
	assert.Equal(t, []string{"Pérez Ana", "Gómez Luis"}, names)
}

func TestReadRoster_NoHeaderUsesFirstColumn(t *testing.T) {
	buf := workbook(t, [][]any{
		{"Ana", 90},
		{"Beto", 80},
	})

	names, err := importer.ReadRoster(buf)

	require.NoError(t, err)
	assert.Equal(t, []string{"Ana", "Beto"}, names)
}

func TestReadRoster_NotAWorkbook(t *testing.T) {
	_, err := importer.ReadRoster(bytes.NewReader([]byte("plain text")))

	assert.Error(t, err)
}

func TestNames_AccentedHeader(t *testing.T) {
	rows := [][]string{
		{"#", "NÓMBRES"},
		{"1", "Carla"},
	}

	assert.Equal(t, []string{"Carla"}, importer.Names(rows))
	assert.Nil(t, importer.Names(nil))
}

func TestNames_SkipsLabelRows(t *testing.T) {
	// GIVEN: Label rows for the class docente and a placeholder student
	// WHEN: Names are extracted
	// THEN: Only real student names are returned

	rows := [][]string{
		{"Nombre"},
		{"Docente: María López"},
		{"Ana Pérez"},
		{"ESTUDIANTE 2"},
		{"Luis Gómez"},
	}

	assert.Equal(t, []string{"Ana Pérez", "Luis Gómez"}, importer.Names(rows))
}

func TestParseName(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		nombres   string
		apellidos string
	}{
		{name: "empty", raw: "  ", nombres: "", apellidos: ""},
		{name: "single word", raw: "Ana", nombres: "Ana"},
		{name: "two words", raw: "Ana Pérez", nombres: "Ana", apellidos: "Pérez"},
		{name: "comma puts surnames first", raw: "Pérez Gómez, Ana María", nombres: "Ana María", apellidos: "Pérez Gómez"},
		{name: "two surnames", raw: "Ana María Pérez Gómez", nombres: "Ana María", apellidos: "Pérez Gómez"},
		{name: "three words", raw: "Luis Pérez Gómez", nombres: "Luis", apellidos: "Pérez Gómez"},
		{name: "prefixed surname", raw: "Juan de la Cruz Pérez", nombres: "Juan", apellidos: "de la Cruz Pérez"},
		{name: "prefixed last surname", raw: "Rosa Pérez de León", nombres: "Rosa", apellidos: "Pérez de León"},
		{name: "prefix case insensitive", raw: "Pedro Antonio San Martín", nombres: "Pedro", apellidos: "Antonio San Martín"},
		{name: "parenthetical dropped", raw: "Ana (repitente) Pérez", nombres: "Ana", apellidos: "Pérez"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nombres, apellidos := importer.ParseName(tt.raw)
			assert.Equal(t, tt.nombres, nombres)
			assert.Equal(t, tt.apellidos, apellidos)
		})
	}
}
