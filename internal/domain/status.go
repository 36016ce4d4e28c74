package domain

// Status is a status code answered by the file-system endpoint.
type Status string

const (
	StatusNonBinaryData      Status = "WSFS_NON_BINARY_DATA"
	StatusEmptyRequest       Status = "WSFS_EMPTY_REQUEST"
	StatusCommandUnknown     Status = "WSFS_COMMAND_UNKNOWN"
	StatusParamMissing       Status = "WSFS_PARAM_MISSING"
	StatusTargetNotExisting  Status = "WSFS_TARGET_NOT_EXISTING"
	StatusNotADir            Status = "WSFS_NOT_A_DIR"
	StatusIsADir             Status = "WSFS_IS_A_DIR"
	StatusCouldNotDeleteFile Status = "WSFS_COULD_NOT_DELETE_FILE"
	StatusCouldNotDeleteDir  Status = "WSFS_COULD_NOT_DELETE_DIR"
	StatusDeleted            Status = "WSFS_DELETED"
	StatusDirExists          Status = "WSFS_DIR_EXISTS"
	StatusFileExists         Status = "WSFS_FILE_EXISTS"
	StatusDirCreated         Status = "WSFS_DIR_CREATED"
	StatusFileCreated        Status = "WSFS_FILE_CREATED"
	StatusFileAppended       Status = "WSFS_FILE_APPENDED"
	StatusFileFound          Status = "WSFS_FILE_FOUND"
	StatusUpdated            Status = "WSFS_UPDATED"
	StatusUntarred           Status = "WSFS_UNTARRED"
	StatusCouldNotCreateFile Status = "WSFS_COULD_NOT_CREATE_FILE"
	StatusCouldNotCreateDir  Status = "WSFS_COULD_NOT_CREATE_DIR"
)

// KnownStatuses lists every status code of the protocol in wire order.
var KnownStatuses = []Status{
	StatusNonBinaryData,
	StatusEmptyRequest,
	StatusCommandUnknown,
	StatusParamMissing,
	StatusTargetNotExisting,
	StatusNotADir,
	StatusIsADir,
	StatusCouldNotDeleteFile,
	StatusCouldNotDeleteDir,
	StatusDeleted,
	StatusDirExists,
	StatusFileExists,
	StatusDirCreated,
	StatusFileCreated,
	StatusFileAppended,
	StatusFileFound,
	StatusUpdated,
	StatusUntarred,
	StatusCouldNotCreateFile,
	StatusCouldNotCreateDir,
}

// Known reports whether s is part of the enumerated set.
func (s Status) Known() bool {
	for _, k := range KnownStatuses {
		if s == k {
			return true
		}
	}
	return false
}

// String returns the wire representation.
func (s Status) String() string {
	return string(s)
}
