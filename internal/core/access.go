package core

// CanView reports whether p may view or download u: owners see their own
// uploads and admins see every upload.
func CanView(p Principal, u Upload) bool {
	return p.IsAdmin || p.ID == u.UserID
}

// CanListAll reports whether p may list every upload in the system.
func CanListAll(p Principal) bool {
	return p.IsAdmin
}
