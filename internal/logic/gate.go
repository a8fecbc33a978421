package logic

// ShouldPublish reports whether snap carries news for rec: the first status
// ever observed for a device is always forwarded, afterwards only changes are.
func ShouldPublish(snap Snapshot, rec Record) bool {
	if !rec.HasLastStatus {
		return true
	}
	return rec.LastStatus != snap.Status
}
