package docserver

// Callback status values sent by the document server.
const (
	StatusEditing         = 1
	StatusMustSave        = 2
	StatusErrorSaving     = 3
	StatusClosedNoChanges = 4
	StatusForceSave       = 6
	StatusErrorForceSave  = 7
)
