package api

import (
	"net/http"

	"github.com/tazhate/flock/internal/domain"
	"github.com/tazhate/flock/internal/storage"
)

type memberRequest struct {
	FirstName string   `json:"first_name"`
	Surname   string   `json:"surname"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address"`
	Status    string   `json:"status"`
	Notes     string   `json:"notes"`
	Interests []string `json:"interests"`
	JoiningUs string   `json:"joining_us"`
	Newcomer  bool     `json:"is_newcomer"`
}

func (req *memberRequest) apply(m *domain.Member) {
	m.FirstName = req.FirstName
	m.Surname = req.Surname
	m.FullName = req.FullName
	m.Email = req.Email
	m.Phone = req.Phone
	m.Address = req.Address
	m.Status = req.Status
	m.Notes = req.Notes
	m.JoiningUs = req.JoiningUs
	m.IsNewcomer = req.Newcomer
	m.SetInterests(req.Interests)
}

// MemberResponse adds the decoded interest list to a member.
type MemberResponse struct {
	*domain.Member
	Interests []string `json:"interests"`
}

func memberResponse(m *domain.Member) MemberResponse {
	return MemberResponse{Member: m, Interests: m.InterestList()}
}

func membersResponse(members []*domain.Member) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse(m))
	}
	return out
}

// GET /api/members?status=&q=
func (s *Server) apiMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	members, err := s.svc.Members.List(r.Context(), storage.MemberFilter{Status: q.Get("status"), Search: q.Get("q")})
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, membersResponse(members))
}

// POST /api/members
func (s *Server) apiCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m := &domain.Member{}
	req.apply(m)
	if err := s.svc.Members.Create(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	jsonStatus(w, http.StatusCreated, memberResponse(m))
}

// GET /api/members/newcomers
func (s *Server) apiNewcomers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.Members.ListNewcomers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, membersResponse(members))
}

// GET /api/members/{id}
func (s *Server) apiMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Members.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, memberResponse(m))
}

// PUT /api/members/{id}
func (s *Server) apiUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Members.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.apply(m)
	if m.Status == "" {
		m.Status = string(domain.StatusNew)
	}
	if err := s.svc.Members.Update(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, memberResponse(m))
}

// DELETE /api/members/{id}
func (s *Server) apiDeleteMember(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Members.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// PUT /api/members/{id}/status
func (s *Server) apiMemberStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Members.SetStatus(r.Context(), pathID(r), req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// PUT /api/members/{id}/telegram - a null telegram_id unlinks.
func (s *Server) apiMemberTelegram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TelegramID *int64 `json:"telegram_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Members.LinkTelegram(r.Context(), pathID(r), req.TelegramID); err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, nil)
}

// GET /api/members/{id}/rota - upcoming duties
func (s *Server) apiMemberRota(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if _, err := s.svc.Members.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	duties, err := s.svc.Rota.Upcoming(r.Context(), id, s.today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	jsonResponse(w, duties)
}
