package api

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalScope/internal/model"
	"approvalScope/internal/pipeline"
)

type stubQuerier struct {
	resp     pipeline.Response
	got      pipeline.Request
	called   int
	noPrices bool
}

func (s *stubQuerier) PricesEnabled() bool {
	return !s.noPrices
}

func (s *stubQuerier) Query(_ context.Context, req pipeline.Request) pipeline.Response {
	s.called++
	s.got = req
	return s.resp
}

func serve(t *testing.T, svc querier, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	NewRouter(svc, time.Second, nil).ServeHTTP(rr, req)
	return rr
}

func TestHealthcheck(t *testing.T) {
	rr := serve(t, &stubQuerier{}, "/healthcheck")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestApprovalsRequiresAddress(t *testing.T) {
	svc := &stubQuerier{}
	rr := serve(t, svc, "/approvals")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, svc.called)
}

func TestApprovalsInvalidParams(t *testing.T) {
	svc := &stubQuerier{}
	assert.Equal(t, http.StatusBadRequest, serve(t, svc, "/approvals?address=0x1&view=pie").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, svc, "/approvals?address=0x1&usd=maybe").Code)
	assert.Zero(t, svc.called)
}

func TestApprovalsRejectsUSDWithoutPrices(t *testing.T) {
	svc := &stubQuerier{noPrices: true}
	rr := serve(t, svc, "/approvals?address=0xa&view=exposure&usd=true")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "usd prices are disabled")
	assert.Zero(t, svc.called)

	rr = serve(t, svc, "/approvals?address=0xa&view=exposure")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.called)
}

func TestApprovalsPassesRequest(t *testing.T) {
	svc := &stubQuerier{}
	rr := serve(t, svc, "/approvals?address=0xa,0xb&address=0xc&contract=0xd&view=exposure&usd=true")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"0xa", "0xb", "0xc"}, svc.got.Addresses)
	assert.Equal(t, []string{"0xd"}, svc.got.Contracts)
	assert.Equal(t, pipeline.ViewExposure, svc.got.View)
	assert.True(t, svc.got.USD)
}

func TestApprovalsReturnsPartialResults(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	contract := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	svc := &stubQuerier{resp: pipeline.Response{
		Results: []pipeline.OwnerResult{{
			Owner: owner,
			Approvals: []model.EnrichedApproval{{
				Owner:    owner,
				Contract: contract,
				Amount:   big.NewInt(42),
			}},
		}},
		Failures: []model.ItemError{{Owner: "bad", Kind: model.KindInvalidAddress, Error: "invalid address"}},
	}}

	rr := serve(t, svc, "/approvals?address="+owner.Hex()+"&address=bad")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Results []struct {
			Owner     common.Address `json:"owner"`
			Approvals []struct {
				Amount string `json:"amount"`
			} `json:"approvals"`
		} `json:"results"`
		Failures []model.ItemError `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, owner, body.Results[0].Owner)
	require.Len(t, body.Results[0].Approvals, 1)
	assert.Equal(t, "42", body.Results[0].Approvals[0].Amount)
	require.Len(t, body.Failures, 1)
	assert.Equal(t, model.KindInvalidAddress, body.Failures[0].Kind)
}

func TestSplitParams(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitParams([]string{" a , b", "", "c,"}))
	assert.Empty(t, splitParams(nil))
}

func TestServerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer("127.0.0.1:0", NewRouter(&stubQuerier{}, 0, nil), nil)

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
