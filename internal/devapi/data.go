package devapi

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tutorhub-portal/internal/model"
)

type account struct {
	model.User
	passwordHash []byte
	tutorID      int64
}

// data is the backend's whole world, kept in memory.
type data struct {
	mu sync.RWMutex

	accounts map[int64]*account
	byEmail  map[string]*account
	tutors   map[int64]*model.TutorProfile
	gigs     map[int64]*model.Gig
	sessions map[int64]*model.TutoringSession
	meetings map[int64]*model.Meeting

	nextGigID     int64
	nextSessionID int64
}

func newData() *data {
	return &data{
		accounts: map[int64]*account{},
		byEmail:  map[string]*account{},
		tutors:   map[int64]*model.TutorProfile{},
		gigs:     map[int64]*model.Gig{},
		sessions: map[int64]*model.TutoringSession{},
		meetings: map[int64]*model.Meeting{},
	}
}

// SeedAccount is one login the backend starts with.
type SeedAccount struct {
	User  model.User
	Tutor *model.TutorProfile
}

// DefaultAccounts covers every login gate: a working account per role, a
// tutor awaiting approval, a deactivated tutor, an unverified manager and a
// tutor without a tutor record.
func DefaultAccounts() []SeedAccount {
	ok := func(id int64, email, first, last, typ string) model.User {
		return model.User{ID: id, Email: email, FirstName: first, LastName: last, UserType: typ,
			IsActive: true, IsVerified: true, IsApproved: true}
	}

	pending := ok(5, "pending@tutorhub.dev", "Pat", "Pending", model.UserTypeTutor)
	pending.IsApproved = false
	inactive := ok(6, "inactive@tutorhub.dev", "Ina", "Active", model.UserTypeTutor)
	inactive.IsActive = false
	unverified := ok(7, "unverified@tutorhub.dev", "Una", "Verified", model.UserTypeManager)
	unverified.IsVerified = false

	return []SeedAccount{
		{User: ok(1, "admin@tutorhub.dev", "Ada", "Admin", model.UserTypeAdmin)},
		{User: ok(2, "manager@tutorhub.dev", "Max", "Manager", model.UserTypeManager)},
		{User: ok(3, "staff@tutorhub.dev", "Sam", "Staff", model.UserTypeStaff)},
		{
			User:  ok(4, "tutor@tutorhub.dev", "Tia", "Tutor", model.UserTypeTutor),
			Tutor: &model.TutorProfile{ID: 1, TutorID: "TUT-0001", YearsOfExperience: 6, HourlyRate: 35, Subjects: []string{"Mathematics", "Physics"}},
		},
		{User: pending, Tutor: &model.TutorProfile{ID: 2, TutorID: "TUT-0002", HourlyRate: 30}},
		{User: inactive, Tutor: &model.TutorProfile{ID: 3, TutorID: "TUT-0003", HourlyRate: 30}},
		{User: unverified},
		{User: ok(8, "newtutor@tutorhub.dev", "Ned", "New", model.UserTypeTutor)},
	}
}

func (d *data) seed(accounts []SeedAccount, password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range accounts {
		a := &account{User: s.User, passwordHash: hash}
		if s.Tutor != nil {
			t := *s.Tutor
			d.tutors[t.ID] = &t
			a.tutorID = t.ID
		}
		d.accounts[a.ID] = a
		d.byEmail[strings.ToLower(a.Email)] = a
	}

	if _, ok := d.tutors[1]; ok {
		d.seedLessons(time.Now().UTC())
	}
	return nil
}

func (d *data) seedLessons(now time.Time) {
	d.gigs[1] = &model.Gig{ID: 1, Title: "Algebra I", Subject: "Mathematics", HourlyRate: 35, TutorID: 1, Status: "active"}
	d.gigs[2] = &model.Gig{ID: 2, Title: "Mechanics", Subject: "Physics", HourlyRate: 45, TutorID: 1, Status: "active"}
	d.nextGigID = 2

	lessons := []model.TutoringSession{
		{GigID: 1, Date: now.AddDate(0, 0, -15), Hours: 1.5, IsVerified: true, Status: model.SessionStatusCompleted},
		{GigID: 2, Date: now.AddDate(0, 0, -9), Hours: 2, IsVerified: true, Status: model.SessionStatusCompleted},
		{GigID: 1, Date: now.AddDate(0, 0, -2), Hours: 1, IsVerified: true, Status: model.SessionStatusCompleted},
		{GigID: 2, Date: now.AddDate(0, 0, -1), Hours: 1, IsVerified: false, Status: model.SessionStatusCompleted},
		{GigID: 1, Date: now.Add(time.Hour), Hours: 1, Status: model.SessionStatusScheduled},
	}
	for _, l := range lessons {
		l := l // per-iteration copy (Go <1.22 loop-variable semantics)
		d.nextSessionID++
		l.ID = d.nextSessionID
		l.TutorID = 1
		d.sessions[l.ID] = &l
	}
}

func (d *data) accountByEmail(email string) (*account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	return a, ok
}

func (d *data) account(id int64) (account, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[id]
	if !ok {
		return account{}, false
	}
	return *a, true
}

func (d *data) tutorFor(a account) *model.TutorProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tutors[a.tutorID]
	if !ok {
		return nil
	}
	c := *t
	return &c
}

func (d *data) users() []model.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.User, 0, len(d.accounts))
	for _, a := range d.accounts {
		out = append(out, a.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *data) updateUser(id int64, fn func(*model.User)) (model.User, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[id]
	if !ok {
		return model.User{}, false
	}
	fn(&a.User)
	return a.User, true
}

func (d *data) tutorList() []model.TutorProfile {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.TutorProfile, 0, len(d.tutors))
	for _, t := range d.tutors {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *data) tutor(id int64) (model.TutorProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tutors[id]
	if !ok {
		return model.TutorProfile{}, false
	}
	return *t, true
}

func (d *data) gigList(tutorID int64) []model.Gig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []model.Gig{}
	for _, g := range d.gigs {
		if tutorID == 0 || g.TutorID == tutorID {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (d *data) gig(id int64) (model.Gig, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	g, ok := d.gigs[id]
	if !ok {
		return model.Gig{}, false
	}
	return *g, true
}

func (d *data) saveGig(g model.Gig) model.Gig {
	d.mu.Lock()
	defer d.mu.Unlock()
	if g.ID == 0 {
		d.nextGigID++
		g.ID = d.nextGigID
	}
	if g.Status == "" {
		g.Status = "active"
	}
	d.gigs[g.ID] = &g
	return g
}

func (d *data) deleteGig(id int64) {
	d.mu.Lock()
	delete(d.gigs, id)
	d.mu.Unlock()
}

type sessionQuery struct {
	tutorID  int64
	verified *bool
}

func (d *data) sessionList(q sessionQuery) []model.TutoringSession {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []model.TutoringSession{}
	for _, s := range d.sessions {
		if q.tutorID != 0 && s.TutorID != q.tutorID {
			continue
		}
		if q.verified != nil && s.IsVerified != *q.verified {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (d *data) session(id int64) (model.TutoringSession, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	if !ok {
		return model.TutoringSession{}, false
	}
	return *s, true
}

func (d *data) addSession(s model.TutoringSession) model.TutoringSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextSessionID++
	s.ID = d.nextSessionID
	if s.Status == "" {
		s.Status = model.SessionStatusScheduled
	}
	d.sessions[s.ID] = &s
	return s
}

func (d *data) verifySession(id int64) (model.TutoringSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		return model.TutoringSession{}, false
	}
	s.IsVerified = true
	s.Status = model.SessionStatusCompleted
	return *s, true
}

// meeting returns the session's room, opening it on first use for the
// session's booked length.
func (d *data) meeting(s model.TutoringSession, now time.Time, maxExtensions int) model.Meeting {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.meetings[s.ID]
	if !ok {
		m = &model.Meeting{
			SessionID:     s.ID,
			RoomURL:       "https://meet.tutorhub.dev/" + uuid.NewString(),
			EndsAt:        now.Add(time.Duration(s.Hours * float64(time.Hour))),
			MaxExtensions: maxExtensions,
		}
		d.meetings[s.ID] = m
	}
	return *m
}

func (d *data) extendMeeting(sessionID int64, minutes int) (model.Meeting, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.meetings[sessionID]
	if !ok {
		return model.Meeting{}, errMeetingNotStarted
	}
	if m.ExtensionsUsed >= m.MaxExtensions {
		return *m, errNoExtensionsLeft
	}
	m.EndsAt = m.EndsAt.Add(time.Duration(minutes) * time.Minute)
	m.ExtensionsUsed++
	return *m, nil
}
