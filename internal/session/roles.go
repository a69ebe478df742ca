package session

import (
	"fmt"

	"tutorhub-portal/internal/model"
)

// CheckGates applies the post-credential login rules in order: deactivated
// accounts first, then tutors awaiting approval, then unverified email.
func CheckGates(u model.User) error {
	switch {
	case !u.IsActive:
		return model.ErrAccountDeactivated
	case u.UserType == model.UserTypeTutor && !u.IsApproved:
		return model.ErrTutorPendingApproval
	case !u.IsVerified:
		return model.ErrEmailNotVerified
	}
	return nil
}

func (m *Manager) HasRole(role string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.User != nil && m.state.User.UserType == role
}

func (m *Manager) IsAdmin() bool   { return m.HasRole(model.UserTypeAdmin) }
func (m *Manager) IsTutor() bool   { return m.HasRole(model.UserTypeTutor) }
func (m *Manager) IsManager() bool { return m.HasRole(model.UserTypeManager) }
func (m *Manager) IsStaff() bool   { return m.HasRole(model.UserTypeStaff) }

// TutorID returns the numeric tutor id, preferring the tutor record, then the
// tutor profile, then the user id.
func (m *Manager) TutorID() (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.state.Tutor != nil && m.state.Tutor.ID > 0:
		return m.state.Tutor.ID, true
	case m.state.TutorProfile != nil && m.state.TutorProfile.ID > 0:
		return m.state.TutorProfile.ID, true
	case m.state.User != nil:
		return m.state.User.ID, true
	}
	return 0, false
}

// FormattedTutorID returns the display id ("TUT-007"). A tutor_id issued by
// the backend wins over the derived one.
func (m *Manager) FormattedTutorID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.state.Tutor != nil && m.state.Tutor.TutorID != "":
		return m.state.Tutor.TutorID
	case m.state.TutorProfile != nil && m.state.TutorProfile.TutorID != "":
		return m.state.TutorProfile.TutorID
	case m.state.User != nil:
		return fmt.Sprintf("TUT-%03d", m.state.User.ID)
	}
	return ""
}
