package endpoint

import (
	"net/http"

	"github.com/devmarvs/schoolgate/auth"
)

// Operation names used directly by the console.
const (
	AuthLogin   = "auth.login"
	AuthProfile = "auth.profile"
)

var (
	adminOnly   = RequireRole(auth.RoleAdmin)
	teacherOnly = RequireRole(auth.RoleTeacher)
	staff       = RequireAnyRole(auth.RoleTeacher, auth.RoleAdmin)
	get, post   = http.MethodGet, http.MethodPost
	put, del    = http.MethodPut, http.MethodDelete
	patch       = http.MethodPatch
)

// School returns the catalog of the school administration API. Paths are
// relative to the configured base URL.
func School() *Registry {
	r := NewRegistry()

	r.MustRegister(AuthLogin, Fixed(post, "/auth/login", Public())).
		MustRegister(AuthProfile, Fixed(get, "/auth/profile"))

	// administration
	r.MustRegister("admin.teachers.list", Fixed(get, "/admin/teachers", adminOnly)).
		MustRegister("admin.teachers.create", Fixed(post, "/admin/teachers", adminOnly)).
		MustRegister("admin.teachers.update", Pattern(put, "/admin/teachers/{teacher_id}", adminOnly)).
		MustRegister("admin.teachers.delete", Pattern(del, "/admin/teachers/{teacher_id}", adminOnly)).
		MustRegister("admin.teachers.promote", Pattern(patch, "/admin/teachers/{teacher_id}/promote", adminOnly)).
		MustRegister("admin.classrooms.list", Fixed(get, "/admin/classrooms", staff)).
		MustRegister("admin.classrooms.create", Fixed(post, "/admin/classrooms", adminOnly)).
		MustRegister("admin.classrooms.update", Pattern(put, "/admin/classrooms/{classroom_id}", adminOnly)).
		MustRegister("admin.classrooms.delete", Pattern(del, "/admin/classrooms/{classroom_id}", adminOnly)).
		MustRegister("admin.classrooms.assign_teacher", Pattern(post, "/admin/classrooms/{classroom_id}/assign-teacher", adminOnly)).
		MustRegister("admin.subjects.list", Fixed(get, "/admin/subjects", staff)).
		MustRegister("admin.subjects.create", Fixed(post, "/admin/subjects", adminOnly)).
		MustRegister("admin.subjects.update", Pattern(put, "/admin/subjects/{subject_id}", adminOnly)).
		MustRegister("admin.subjects.delete", Pattern(del, "/admin/subjects/{subject_id}", adminOnly)).
		MustRegister("admin.students.list", Fixed(get, "/admin/students", staff)).
		MustRegister("admin.students.create", Fixed(post, "/admin/students", staff)).
		MustRegister("admin.students.update", Pattern(put, "/admin/students/{student_id}", staff)).
		MustRegister("admin.students.delete", Pattern(del, "/admin/students/{student_id}", adminOnly)).
		MustRegister("admin.assignments.list", Fixed(get, "/admin/assignments", adminOnly)).
		MustRegister("admin.assignments.create", Fixed(post, "/admin/assignments", adminOnly)).
		MustRegister("admin.assignments.delete", Pattern(del, "/admin/assignments/{assignment_id}", adminOnly)).
		MustRegister("admin.users.list", Fixed(get, "/admin/users", adminOnly)).
		MustRegister("admin.users.deactivate", Pattern(post, "/admin/users/{user_id}/deactivate", adminOnly)).
		MustRegister("admin.audit_logs", Fixed(get, "/admin/audit-logs", adminOnly)).
		MustRegister("admin.stats", Fixed(get, "/admin/dashboard/stats", adminOnly))

	// teachers
	r.MustRegister("teachers.profile", Fixed(get, "/teachers/profile", staff)).
		MustRegister("teachers.profile.update", Fixed(put, "/teachers/profile", staff)).
		MustRegister("teachers.my_assignments", Fixed(get, "/teachers/my-assignments", staff)).
		MustRegister("teachers.my_classrooms", Fixed(get, "/teachers/my-classrooms", staff)).
		MustRegister("teachers.my_students", Fixed(get, "/teachers/my-students", staff))

	// students
	r.MustRegister("students.register", Fixed(post, "/students/register")).
		MustRegister("students.classroom", Pattern(get, "/students/classroom/{classroom_id}", teacherOnly)).
		MustRegister("students.update", Pattern(put, "/students/{student_id}", teacherOnly))

	// grades
	r.MustRegister("grades.add", Fixed(post, "/grades", staff)).
		MustRegister("grades.update", Pattern(put, "/grades/{grade_id}", staff)).
		MustRegister("grades.delete", Pattern(del, "/grades/{grade_id}", staff)).
		MustRegister("grades.student", Pattern(get, "/grades/student/{student_id}", staff)).
		MustRegister("grades.classroom", Pattern(get, "/grades/classroom/{classroom_id}/period/{period_id}", staff)).
		MustRegister("grades.teacher", Pattern(get, "/grades/teacher/{teacher_id}", staff))

	// reports
	r.MustRegister("reports.generate", Pattern(post, "/reports/generate/{student_id}/{period_id}", staff)).
		MustRegister("reports.classroom", Pattern(get, "/reports/classroom/{classroom_id}/period/{period_id}", staff)).
		MustRegister("reports.teacher", Pattern(get, "/reports/teacher/{teacher_id}/period/{period_id}", staff)).
		MustRegister("reports.download", Pattern(get, "/reports/{report_id}/download", staff))

	// attendance
	r.MustRegister("attendance.record", Fixed(post, "/attendance", staff)).
		MustRegister("attendance.classroom", Pattern(get, "/attendance/classroom/{classroom_id}", staff)).
		MustRegister("attendance.student", Pattern(get, "/attendance/student/{student_id}", staff)).
		MustRegister("attendance.teacher", Pattern(get, "/attendance/teacher/{teacher_id}", staff)).
		MustRegister("attendance.update", Pattern(put, "/attendance/{attendance_id}", staff)).
		MustRegister("attendance.delete", Pattern(del, "/attendance/{attendance_id}", staff))

	// evaluation periods
	r.MustRegister("periods.list", Fixed(get, "/evaluation-periods", staff)).
		MustRegister("periods.create", Fixed(post, "/evaluation-periods", adminOnly)).
		MustRegister("periods.update", Pattern(put, "/evaluation-periods/{period_id}", adminOnly)).
		MustRegister("periods.delete", Pattern(del, "/evaluation-periods/{period_id}", adminOnly)).
		MustRegister("periods.current", Fixed(get, "/evaluation-periods/current", staff)).
		MustRegister("periods.academic_year", Pattern(get, "/evaluation-periods/academic-year/{academic_year}", staff))

	return r
}
