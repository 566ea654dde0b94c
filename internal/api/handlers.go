package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	chaindom "github.com/ddomesh/ddo-node/business/chain/domain"
	resolverdom "github.com/ddomesh/ddo-node/business/resolver/domain"
	storagedom "github.com/ddomesh/ddo-node/business/storage/domain"
	"github.com/ddomesh/ddo-node/internal/apperror"
)

const maxBodyBytes = 1 << 20

// resolveResponse is the answer to a full resolution request.
type resolveResponse struct {
	Record        resolverdom.ResolutionRecord `json:"record"`
	IsFresh       bool                         `json:"isFresh"`
	Source        string                       `json:"source,omitempty"`
	CorrelationID string                       `json:"correlationId,omitempty"`
	Verified      *bool                        `json:"verified,omitempty"`
}

// handleResolve answers GET /api/v1/ddo/{id}. An unknown identifier is a
// 404, not an internal error. ?verify=1 cross-checks the winning record's
// update transaction on chain.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	res, err := s.resolver.Resolve(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !res.Known {
		s.respondError(w, r, apperror.NotFound(apperror.CodeDescriptorNotFound,
			fmt.Sprintf("unknown identifier %s", id)))
		return
	}

	body := resolveResponse{
		Record:        res.Record,
		IsFresh:       res.Fresh,
		Source:        string(res.Source),
		CorrelationID: res.CorrelationID,
	}

	if r.URL.Query().Get("verify") == "1" && s.chains != nil {
		verified := s.chains.VerifyUpdate(r.Context(), 0, res.Record.LastUpdateTx) == nil
		body.Verified = &verified
	}

	s.respond(w, http.StatusOK, body)
}

// handleLocalRecord answers the peer-facing lookup: this node's own best
// record for the identifier, with no network escalation.
func (s *Server) handleLocalRecord(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, found, err := s.resolver.LocalRecord(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if !found {
		s.respondError(w, r, apperror.NotFound(apperror.CodeDescriptorNotFound,
			fmt.Sprintf("unknown identifier %s", id)))
		return
	}

	s.respond(w, http.StatusOK, rec)
}

// publishRequest is the operator-facing descriptor ingest body.
type publishRequest struct {
	ID             string          `json:"id"`
	Document       json.RawMessage `json:"document"`
	ChainID        uint64          `json:"chainId,omitempty"`
	LastUpdateTx   string          `json:"lastUpdateTx"`
	LastUpdateTime time.Time       `json:"lastUpdateTime,omitempty"`
}

// handlePublish ingests an operator-supplied descriptor.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, apperror.Validation(apperror.CodeInvalidFormat, "request body is not valid JSON"))
		return
	}

	rec, err := s.resolver.PublishDescriptor(r.Context(), resolverdom.StoredDescriptor{
		ID:             req.ID,
		Document:       req.Document,
		ChainID:        req.ChainID,
		LastUpdateTx:   req.LastUpdateTx,
		LastUpdateTime: req.LastUpdateTime,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusCreated, rec)
}

// handleChains lists the connectivity snapshot of every managed network.
func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	if s.chains == nil {
		s.respond(w, http.StatusOK, []any{})
		return
	}
	s.respond(w, http.StatusOK, s.chains.Statuses())
}

// handleChainEndpoints lists the endpoint pool of one network with each
// endpoint's last probe outcome.
func (s *Server) handleChainEndpoints(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.chainID(w, r)
	if !ok {
		return
	}

	endpoints, err := s.requireChains(chainID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, endpoints)
}

// handleChainReconnect triggers a fallback walk on a degraded network and
// reports the state it settled in. The node never retries a dead pool on
// its own; this route is how an operator asks for another attempt.
func (s *Server) handleChainReconnect(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.chainID(w, r)
	if !ok {
		return
	}
	if s.chains == nil {
		s.respondError(w, r, apperror.New(apperror.CodeChainNotConfigured))
		return
	}

	if err := s.chains.Reconnect(r.Context(), chainID); err != nil {
		s.respondError(w, r, err)
		return
	}

	status, err := s.chains.Status(chainID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, status)
}

// handleFileInfo probes the availability of one file object.
func (s *Server) handleFileInfo(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil {
		s.respondError(w, r, apperror.Unavailable(apperror.CodeServiceUnavailable,
			"file probing is not configured", nil))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var spec storagedom.FileSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		s.respondError(w, r, apperror.Validation(apperror.CodeInvalidFormat, "request body is not valid JSON"))
		return
	}

	meta, err := s.storage.FileInfo(r.Context(), spec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, meta)
}

// handleToken reads ERC-20 metadata from the token contract.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	chainID, ok := s.chainID(w, r)
	if !ok {
		return
	}
	if s.chains == nil {
		s.respondError(w, r, apperror.New(apperror.CodeChainNotConfigured))
		return
	}

	meta, err := s.chains.TokenMetadata(r.Context(), chainID, mux.Vars(r)["address"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respond(w, http.StatusOK, meta)
}

// statsResponse summarizes the node's holdings and connectivity.
type statsResponse struct {
	StoredDescriptors int               `json:"storedDescriptors"`
	CachedRecords     int               `json:"cachedRecords"`
	Chains            []chainStatusJSON `json:"chains"`
}

type chainStatusJSON struct {
	ChainID   uint64 `json:"chainId"`
	Name      string `json:"name,omitempty"`
	State     string `json:"state"`
	LastBlock uint64 `json:"lastBlock"`
}

// handleStats reports store count, cache size and per-chain health.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.resolver.Stats(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	body := statsResponse{
		StoredDescriptors: stats.StoredDescriptors,
		CachedRecords:     stats.CachedRecords,
		Chains:            []chainStatusJSON{},
	}
	if s.chains != nil {
		for _, cs := range s.chains.Statuses() {
			body.Chains = append(body.Chains, chainStatusJSON{
				ChainID:   cs.ChainID,
				Name:      cs.Name,
				State:     string(cs.State),
				LastBlock: cs.LastBlock,
			})
		}
	}

	s.respond(w, http.StatusOK, body)
}

// chainID parses the chainId path variable, answering 400 itself on a
// malformed value.
func (s *Server) chainID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := mux.Vars(r)["chainId"]
	chainID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || chainID == 0 {
		s.respondError(w, r, apperror.Validation(apperror.CodeInvalidInput,
			fmt.Sprintf("invalid chain id %q", raw)))
		return 0, false
	}
	return chainID, true
}

// requireChains fetches one network's endpoint statuses, folding the
// nil-service case into the not-configured error.
func (s *Server) requireChains(chainID uint64) ([]chaindom.EndpointStatus, error) {
	if s.chains == nil {
		return nil, apperror.New(apperror.CodeChainNotConfigured)
	}
	return s.chains.Endpoints(chainID)
}
