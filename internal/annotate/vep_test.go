// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package annotate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AliSaadatV/AcmGENTIC/internal/httputil"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

const sampleVEPJSON = `[{
  "input": "2 162279995 . C G . . .",
  "colocated_variants": [
    {"id": "COSV1234"},
    {"id": "CM000001", "ids": ["CM000001", "rs121917956"]}
  ],
  "transcript_consequences": [{
    "transcript_id": "ENST00000283256",
    "gene_symbol": "SCN2A",
    "hgvsc": "ENST00000283256.10:c.2447G>C",
    "hgvsp": "ENSP00000283256.6:p.Arg816Pro",
    "mane_select": "NM_021007.3"
  }]
}]`

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func withServers(t *testing.T, url string) {
	t.Helper()
	old38, old37 := grch38Server, grch37Server
	grch38Server, grch37Server = url+"/38", url+"/37"
	t.Cleanup(func() { grch38Server, grch37Server = old38, old37 })
}

func testClient(ts *httptest.Server) *VEPClient {
	return &VEPClient{
		Client: ts.Client(),
		Cfg:    types.AnnotationConfig{HTTPConfig: types.HTTPConfig{UserAgent: "test/0.1"}},
	}
}

func TestAnnotateParsesPickedTranscript(t *testing.T) {
	var captured vepRequest
	var path, ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		ua = r.Header.Get("User-Agent")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		fmt.Fprint(w, sampleVEPJSON)
	}))
	defer ts.Close()
	withServers(t, ts.URL)

	got, err := testClient(ts).Annotate(context.Background(), "2", 162279995, "C", "G", types.AssemblyGRCh38)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "/38"+vepRegionEndpoint, path)
	assert.Equal(t, "test/0.1", ua)
	assert.Equal(t, []string{"2 162279995 . C G . . ."}, captured.Variants)
	assert.Equal(t, 1, captured.HGVS)
	assert.Equal(t, 1, captured.Pick)
	assert.Equal(t, 1, captured.MANE)

	assert.Equal(t, &types.Annotation{
		RSID:              "rs121917956",
		HGVSc:             "ENST00000283256.10:c.2447G>C",
		HGVSp:             "ENSP00000283256.6:p.Arg816Pro",
		GeneSymbol:        "SCN2A",
		EnsemblTranscript: "ENST00000283256",
		MANETranscript:    "NM_021007.3",
	}, got)
}

func TestAnnotateGRCh37Server(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()
	withServers(t, ts.URL)

	got, err := testClient(ts).Annotate(context.Background(), "1", 1, "A", "G", types.AssemblyGRCh37)
	require.NoError(t, err)
	assert.Nil(t, got, "empty VEP result means no annotation")
	assert.Equal(t, "/37"+vepRegionEndpoint, path)
}

func TestAnnotateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadRequest, `{"error":"bad input"}`},
		{"malformed json", http.StatusOK, `{not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer ts.Close()
			withServers(t, ts.URL)

			_, err := testClient(ts).Annotate(context.Background(), "1", 1, "A", "G", types.AssemblyGRCh38)
			assert.Error(t, err)
		})
	}
}

func TestRSIDSelection(t *testing.T) {
	tests := []struct {
		name string
		cv   []vepColocated
		want string
	}{
		{"none", nil, ""},
		{"direct id", []vepColocated{{ID: "rs1"}}, "rs1"},
		{"from ids list", []vepColocated{{ID: "COSV9", IDs: []string{"COSV9", "rs22"}}}, "rs22"},
		{"first wins", []vepColocated{{ID: "rs1"}, {ID: "rs2"}}, "rs1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vepEntry{ColocatedVariants: tt.cv}.rsID())
		})
	}
}
