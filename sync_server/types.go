package main

// SyncItem is one per-user key-value record.
type SyncItem struct {
	Key           string `json:"key"`
	DataType      string `json:"dataType"`
	Data          string `json:"data"`
	DataTimestamp int64  `json:"dataTimestamp"`
	IsDeleted     bool   `json:"isDeleted,omitempty"`
}

// SyncUser is the per-user sync head: a monotonically increasing nonce and
// the hash the client data is encrypted under.
type SyncUser struct {
	UserID  string
	Nonce   int64
	PwdHash string
}

type UploadRequest struct {
	Nonce     int64      `json:"nonce"`
	PwdHash   string     `json:"pwdHash"`
	LocalData []SyncItem `json:"localData"`
}

type UploadResponse struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Nonce   int64  `json:"nonce"`
	PwdHash string `json:"pwdHash"`
}

type DownloadRequest struct {
	PwdHash        string `json:"pwdHash"`
	IncludeDeleted bool   `json:"includeDeleted"`
	Limit          int    `json:"limit"`
	Skip           int    `json:"skip"`
}

type DownloadResponse struct {
	ServerData []SyncItem `json:"serverData"`
}

// CheckItem carries only what the server needs to classify a client key.
// A nil timestamp means the client cannot date its copy.
type CheckItem struct {
	Key           string `json:"key"`
	DataType      string `json:"dataType"`
	DataTimestamp *int64 `json:"dataTimestamp"`
}

type CheckRequest struct {
	Nonce                  int64       `json:"nonce"`
	PwdHash                string      `json:"pwdHash"`
	OnlyCheckLocalDataType []string    `json:"onlyCheckLocalDataType"`
	LocalData              []CheckItem `json:"localData"`
}

type CheckResponse struct {
	Nonce     int64      `json:"nonce"`
	Deleted   []string   `json:"deleted"`
	Obsoleted []string   `json:"obsoleted"`
	Diff      []SyncItem `json:"diff"`
	Updated   []SyncItem `json:"updated"`
}

type FlushRequest struct {
	Nonce     int64      `json:"nonce"`
	PwdHash   string     `json:"pwdHash"`
	LocalData []SyncItem `json:"localData"`
}
