package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ATHScanner/internal/model"
)

const nseCSV = `SYMBOL,NAME OF COMPANY, SERIES, DATE OF LISTING, PAID UP VALUE
20MICRONS,20 Microns Limited,EQ,06-OCT-2008,5
ACME,"Acme Industries, Ltd",BE,01-JAN-2001,10
,Blank Row,EQ,01-JAN-2001,10
`

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestNSESource(t *testing.T) {
	src := NewNSESource(serve(t, http.StatusOK, nseCSV), nil)
	list, err := src.ListInstruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Instrument{
		{ID: "20MICRONS.NS", DisplayName: "20 Microns Limited", Exchange: "NSE", Class: "EQ"},
		{ID: "ACME.NS", DisplayName: "Acme Industries, Ltd", Exchange: "NSE", Class: "BE"},
	}, list)
}

func TestNSESourceUnavailable(t *testing.T) {
	_, err := NewNSESource(serve(t, http.StatusForbidden, "denied"), nil).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBSESource(t *testing.T) {
	body := `{"Table":[{"short_name":"RELIANCE","LONGNAME":"Reliance Industries Ltd"},{"short_name":" ","LONGNAME":"x"}]}`
	list, err := NewBSESource(serve(t, http.StatusOK, body), nil).ListInstruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Instrument{
		{ID: "RELIANCE.BO", DisplayName: "Reliance Industries Ltd", Exchange: "BSE", Class: "EQ"},
	}, list)
}

func TestBSESourceBadJSON(t *testing.T) {
	_, err := NewBSESource(serve(t, http.StatusOK, "<html>"), nil).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "symbols.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- symbol: TCS.NS
  name: Tata Consultancy Services
  series: EQ
- symbol: SBIN.BO
`), 0o644))
	jsonPath := filepath.Join(dir, "symbols.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"symbol":"INFY.NS","name":"Infosys","exchange":"NSE","series":"EQ"}]`), 0o644))

	list, err := (&FileSource{Path: yamlPath}).ListInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "NSE", list[0].Exchange)
	assert.Equal(t, "BSE", list[1].Exchange)

	list, err = (&FileSource{Path: jsonPath}).ListInstruments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Infosys", list[0].DisplayName)

	_, err = (&FileSource{Path: filepath.Join(dir, "missing.yaml")}).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

type failing struct{ err error }

func (f failing) ListInstruments(context.Context) ([]model.Instrument, error) { return nil, f.err }

func TestCombined(t *testing.T) {
	a := Static{{ID: "A.NS"}, {ID: "B.NS"}}
	b := Static{{ID: "B.NS"}, {ID: "C.BO"}}

	list, err := NewCombined(a, failing{ErrUnavailable}, b).ListInstruments(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, inst := range list {
		ids[i] = inst.ID
	}
	assert.Equal(t, []string{"A.NS", "B.NS", "C.BO"}, ids)
}

func TestCombinedAllFailing(t *testing.T) {
	_, err := NewCombined(failing{errors.New("dns")}, failing{errors.New("503")}).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCombinedEmpty(t *testing.T) {
	_, err := NewCombined(Static{}, Static{}).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestClassFilter(t *testing.T) {
	src := Static{
		{ID: "A.NS", Exchange: "NSE", Class: "EQ"},
		{ID: "B.NS", Exchange: "NSE", Class: "GS"},
		{ID: "C.NS", Exchange: "NSE", Class: ""},
		{ID: "D.BO", Exchange: "BSE", Class: "XT"},
	}
	list, err := NewClassFilter(src, DefaultEquityClasses, []string{"BSE"}).ListInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "A.NS", list[0].ID)
	assert.Equal(t, "C.NS", list[1].ID)
	assert.Equal(t, "D.BO", list[2].ID)

	_, err = NewClassFilter(Static{{ID: "B.NS", Class: "GS"}}, DefaultEquityClasses, nil).ListInstruments(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
}
