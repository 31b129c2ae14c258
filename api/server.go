package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/axiomesh/council/core"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Backend is the part of core.Portal served over HTTP.
type Backend interface {
	Proposals(tab core.Tab) []core.ProposalView
	Proposal(proposalID string) (core.ProposalView, error)
	AccountView(ctx context.Context, account, proposalID string) (*core.AccountView, error)
	SelectBallot(ctx context.Context, account, proposalID string, b core.Ballot) (*core.AccountView, error)
	VoteSubmitted(ctx context.Context, account, proposalID, txHash string) (*core.AccountView, error)
	VoteFailed(ctx context.Context, account, proposalID, message string) (*core.AccountView, error)
	DepositGate(ctx context.Context, account, amount string) (*core.DepositView, error)
	WithdrawGate(ctx context.Context, account, amount string) (*core.WithdrawView, error)
	Airdrop(ctx context.Context, info core.MerkleInfo) (*core.AirdropView, error)
}

var _ Backend = (*core.Portal)(nil)

type Server struct {
	backend Backend
	logger  *logrus.Logger
	router  *mux.Router
	srv     *http.Server
}

func New(backend Backend, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	s := &Server{
		backend: backend,
		logger:  logger,
		router:  mux.NewRouter(),
	}

	r := s.router
	r.HandleFunc("/proposals", s.listProposals).Methods(http.MethodGet)
	r.HandleFunc("/proposals/{id}", s.getProposal).Methods(http.MethodGet)
	r.HandleFunc("/proposals/{id}/accounts/{account}", s.getAccount).Methods(http.MethodGet)
	r.HandleFunc("/proposals/{id}/accounts/{account}/ballot", s.selectBallot).Methods(http.MethodPost)
	r.HandleFunc("/proposals/{id}/accounts/{account}/submitted", s.voteSubmitted).Methods(http.MethodPost)
	r.HandleFunc("/proposals/{id}/accounts/{account}/failed", s.voteFailed).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{account}/deposit", s.depositGate).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{account}/withdraw", s.withdrawGate).Methods(http.MethodGet)
	r.HandleFunc("/airdrop", s.airdrop).Methods(http.MethodPost)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on listen in the background.
func (s *Server) Start(listen string) {
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Infof("http api listening on %s", listen)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("http api error: %s", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type ballotRequest struct {
	Ballot *core.Ballot `json:"ballot"`
}

type submittedRequest struct {
	TxHash string `json:"txHash"`
}

type failedRequest struct {
	Message string `json:"message"`
}

func (s *Server) listProposals(w http.ResponseWriter, r *http.Request) {
	tab, ok := core.ParseTab(r.URL.Query().Get("tab"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "tab must be active or past"})
		return
	}
	views := s.backend.Proposals(tab)
	if views == nil {
		views = []core.ProposalView{}
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getProposal(w http.ResponseWriter, r *http.Request) {
	view, err := s.backend.Proposal(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.backend.AccountView(r.Context(), vars["account"], vars["id"])
	s.respond(w, view, err)
}

func (s *Server) selectBallot(w http.ResponseWriter, r *http.Request) {
	var req ballotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Ballot == nil {
		s.writeError(w, &core.InvalidBallotError{})
		return
	}
	vars := mux.Vars(r)
	view, err := s.backend.SelectBallot(r.Context(), vars["account"], vars["id"], *req.Ballot)
	s.respond(w, view, err)
}

func (s *Server) voteSubmitted(w http.ResponseWriter, r *http.Request) {
	var req submittedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	view, err := s.backend.VoteSubmitted(r.Context(), vars["account"], vars["id"], req.TxHash)
	s.respond(w, view, err)
}

func (s *Server) voteFailed(w http.ResponseWriter, r *http.Request) {
	var req failedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, err)
		return
	}
	vars := mux.Vars(r)
	view, err := s.backend.VoteFailed(r.Context(), vars["account"], vars["id"], req.Message)
	s.respond(w, view, err)
}

func (s *Server) depositGate(w http.ResponseWriter, r *http.Request) {
	view, err := s.backend.DepositGate(r.Context(), mux.Vars(r)["account"], r.URL.Query().Get("amount"))
	s.respond(w, view, err)
}

func (s *Server) withdrawGate(w http.ResponseWriter, r *http.Request) {
	view, err := s.backend.WithdrawGate(r.Context(), mux.Vars(r)["account"], r.URL.Query().Get("amount"))
	s.respond(w, view, err)
}

func (s *Server) airdrop(w http.ResponseWriter, r *http.Request) {
	var info core.MerkleInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.backend.Airdrop(r.Context(), info)
	s.respond(w, view, err)
}

func (s *Server) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Errorf("http api error: %s", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	var (
		ballotErr *core.InvalidBallotError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, core.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidAccount),
		errors.Is(err, core.ErrInvalidTxHash),
		errors.As(err, &ballotErr),
		errors.As(err, &syntaxErr),
		errors.As(err, &typeErr),
		errors.Is(err, io.EOF):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrVoteNotAllowed),
		errors.Is(err, core.ErrNoPendingVote),
		errors.Is(err, core.ErrSessionMismatch):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
