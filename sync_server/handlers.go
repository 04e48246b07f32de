package main

import (
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

const (
	downloadDefaultLimit = 100
	downloadMaxLimit     = 1000
)

// SyncHandler holds the dependencies of the sync routes.
type SyncHandler struct {
	store     *SyncStore
	notifier  Notifier
	jwtSecret []byte
}

func NewSyncHandler(store *SyncStore, notifier Notifier, jwtSecret []byte) *SyncHandler {
	return &SyncHandler{store: store, notifier: notifier, jwtSecret: jwtSecret}
}

// AuthMiddleware validates the bearer token and stashes the caller's
// user and instance ids on the context.
func (h *SyncHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return h.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		userID, _ := claims["userId"].(string)
		instanceID, _ := claims["instanceId"].(string)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing userId"})
			c.Abort()
			return
		}

		c.Set("userID", userID)
		c.Set("instanceID", instanceID)
		c.Next()
	}
}

func callerIDs(c *gin.Context) (userID, instanceID string) {
	return c.GetString("userID"), c.GetString("instanceID")
}

// verifyPwdHash enforces that a caller presenting data for an existing
// account knows the account's hash. Accounts with no stored hash accept
// anything.
func (h *SyncHandler) verifyPwdHash(c *gin.Context, user *SyncUser, pwdHash string) bool {
	if user.PwdHash == "" || user.PwdHash == pwdHash {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "Password hash mismatch"})
	return false
}

func (h *SyncHandler) HandleUpload(c *gin.Context) {
	userID, instanceID := callerIDs(c)

	var body UploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !h.verifyPwdHash(c, user, body.PwdHash) {
		return
	}

	// A client claiming a newer nonce than the server holds is out of
	// sync and must download first.
	if body.Nonce > user.Nonce {
		c.JSON(http.StatusConflict, gin.H{"error": "Nonce invalid", "nonce": user.Nonce})
		return
	}

	// Uploads require existing server state unless this is the very
	// first upload for the account.
	count, err := h.store.CountRecords(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if count == 0 && user.Nonce > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Server data flushed, full upload required"})
		return
	}

	created, updated, err := h.store.UpsertRecords(userID, body.LocalData)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	newNonce := user.Nonce + 1
	if err := h.store.UpdateUser(userID, newNonce, body.PwdHash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.notifier.NotifyUser(userID, instanceID, NotifyConfigChange)

	c.JSON(http.StatusOK, UploadResponse{
		Created: created,
		Updated: updated,
		Nonce:   newNonce,
		PwdHash: body.PwdHash,
	})
}

func (h *SyncHandler) HandleDownload(c *gin.Context) {
	userID, _ := callerIDs(c)

	var body DownloadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if body.Limit <= 0 {
		body.Limit = downloadDefaultLimit
	}
	if body.Limit > downloadMaxLimit {
		body.Limit = downloadMaxLimit
	}
	if body.Skip < 0 {
		body.Skip = 0
	}

	user, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !h.verifyPwdHash(c, user, body.PwdHash) {
		return
	}

	items, err := h.store.FindRecordsPage(userID, body.IncludeDeleted, body.Limit, body.Skip)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	c.JSON(http.StatusOK, DownloadResponse{ServerData: items})
}

func (h *SyncHandler) HandleCheck(c *gin.Context) {
	userID, _ := callerIDs(c)

	var body CheckRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	user, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !h.verifyPwdHash(c, user, body.PwdHash) {
		return
	}

	serverData, err := h.store.FindRecords(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, classifyClientData(user.Nonce, body, serverData))
}

// classifyClientData sorts every key into the action the client must
// take to converge with the server:
//
//	deleted   - the server tombstoned it, drop the local copy
//	obsoleted - the local copy is newer or unknown server-side, upload it
//	diff      - the local copy has no timestamp, resolve manually
//	updated   - the server copy is newer, replace the local one
func classifyClientData(serverNonce int64, body CheckRequest, serverData map[string]SyncItem) CheckResponse {
	resp := CheckResponse{
		Nonce:     serverNonce,
		Deleted:   []string{},
		Obsoleted: []string{},
		Diff:      []SyncItem{},
		Updated:   []SyncItem{},
	}

	typeFilter := make(map[string]bool, len(body.OnlyCheckLocalDataType))
	for _, t := range body.OnlyCheckLocalDataType {
		typeFilter[t] = true
	}

	clientData := make(map[string]CheckItem, len(body.LocalData))
	for _, item := range body.LocalData {
		clientData[item.Key] = item
	}

	// Local keys the server has never seen must be uploaded.
	for _, item := range body.LocalData {
		if _, ok := serverData[item.Key]; !ok {
			resp.Obsoleted = append(resp.Obsoleted, item.Key)
		}
	}

	for key, serverItem := range serverData {
		clientItem, onClient := clientData[key]
		if !onClient {
			// Keys the client never mentioned are only pushed down
			// when their type was asked for and they still exist.
			if len(typeFilter) > 0 && !typeFilter[serverItem.DataType] {
				continue
			}
			if serverItem.IsDeleted {
				continue
			}
			resp.Updated = append(resp.Updated, serverItem)
			continue
		}
		if clientItem.DataTimestamp == nil {
			resp.Diff = append(resp.Diff, serverItem)
			continue
		}
		switch {
		case *clientItem.DataTimestamp > serverItem.DataTimestamp:
			resp.Obsoleted = append(resp.Obsoleted, key)
		case *clientItem.DataTimestamp < serverItem.DataTimestamp:
			if serverItem.IsDeleted {
				resp.Deleted = append(resp.Deleted, key)
			} else {
				resp.Updated = append(resp.Updated, serverItem)
			}
		}
	}

	return resp
}

func (h *SyncHandler) HandleFlush(c *gin.Context) {
	userID, instanceID := callerIDs(c)

	var body FlushRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Replacing the account with real data requires a hash to protect
	// it. An empty flush wipes the account and clears the hash.
	if len(body.LocalData) > 0 && body.PwdHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password hash required"})
		return
	}

	user, err := h.store.GetOrCreateUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if !h.verifyPwdHash(c, user, body.PwdHash) {
		return
	}

	if err := h.store.ReplaceRecords(userID, body.LocalData); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	newNonce := user.Nonce + 1
	newHash := body.PwdHash
	if len(body.LocalData) == 0 {
		newHash = ""
	}
	if err := h.store.UpdateUser(userID, newNonce, newHash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	h.notifier.NotifyUser(userID, instanceID, NotifyConfigFlush)

	c.JSON(http.StatusOK, gin.H{"nonce": newNonce, "count": len(body.LocalData)})
}
