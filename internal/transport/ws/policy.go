package ws

import "github.com/nikhilsaini9909/edu-reporting-framework/internal/domain"

// policy is the capability table keyed by (command, role). It is consulted
// once per inbound command; handlers never re-implement role checks.
var policy = map[string]map[domain.Role]bool{
	cmdJoinClassroom: {
		domain.RoleStudent: true,
		domain.RoleTeacher: true,
		domain.RoleAdmin:   true,
	},
	cmdQuizStart: {
		domain.RoleTeacher: true,
		domain.RoleAdmin:   true,
	},
	cmdQuizAnswer: {
		domain.RoleStudent: true,
	},
	cmdQuizEnd: {
		domain.RoleTeacher: true,
		domain.RoleAdmin:   true,
	},
}

func roleAllowed(command string, role domain.Role) bool {
	return policy[command][role]
}

// classroomAllowed gates room access by school: a caller may only act in
// classrooms of its own school unless it is an admin.
func classroomAllowed(p domain.Principal, schoolID string) bool {
	return p.Role == domain.RoleAdmin || p.SchoolID == schoolID
}
