package patient

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func samplePatients() []*Patient {
	email := "asha@example.com"
	dob := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	return []*Patient{
		{ID: uuid.New(), FirstName: "Asha", LastName: "Rao", Phone: "+919812345678", Email: &email, DateOfBirth: &dob},
		{ID: uuid.New(), FirstName: "Ravi", LastName: "Kumar", Phone: "+919876543210"},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samplePatients()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "asha@example.com", records[1][4])
	assert.Equal(t, "1990-04-12", records[1][5])
	assert.Equal(t, "", records[2][4])
	assert.Equal(t, "", records[2][6])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(exportHeader, ",")+"\n", buf.String())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, samplePatients()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Patients"}, f.GetSheetList())
	rows, err := f.GetRows("Patients")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, "Ravi", rows[2][1])
}

func TestParseImportCSV(t *testing.T) {
	in := "\ufeffFirst Name,Last Name,Phone,Allergies,Unknown\n" +
		"Asha, Rao ,98123 45678,Latex;Penicillin,x\n" +
		"Ravi,Kumar,9876543210,,\n"

	rows, err := ParseImportCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Asha", rows[0].FirstName)
	assert.Equal(t, "Rao", rows[0].LastName)
	assert.Equal(t, []string{"Latex", "Penicillin"}, rows[0].Allergies)
	assert.Nil(t, rows[1].Allergies)
}

func TestParseImportCSV_ExportRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samplePatients()))

	rows, err := ParseImportCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "+919812345678", rows[0].Phone)
	assert.Equal(t, "1990-04-12", rows[0].DateOfBirth)
	assert.Equal(t, "asha@example.com", rows[0].Email)
}

func TestParseImportCSV_Errors(t *testing.T) {
	_, err := ParseImportCSV(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseImportCSV(strings.NewReader("foo,bar\n1,2\n"))
	assert.ErrorContains(t, err, "no recognised columns")
}
