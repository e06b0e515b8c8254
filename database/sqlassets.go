package sqlassets

import _ "embed"

//go:embed schema/shared/schools.sql
var SchoolsSQL string

//go:embed schema/shared/school_memberships.sql
var SchoolMembershipsSQL string

//go:embed schema/school/users.sql
var SchoolUsersSQL string
