package public

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pixelmart/internal/http/response"
	"github.com/pixelmart/internal/service"

	"github.com/gin-gonic/gin"
)

// DownloadFile 下载已授权的设计文件
func (h *Handler) DownloadFile(c *gin.Context) {
	uid, ok := getUserID(c)
	if !ok {
		return
	}

	fileID, err := strconv.ParseUint(c.Param("file_id"), 10, 64)
	if err != nil || fileID == 0 {
		respondError(c, response.CodeBadRequest, "error.invalid_params", nil)
		return
	}

	auth, err := h.DownloadService.Authorize(c.Request.Context(), service.Requester{UserID: uid}, uint(fileID))
	if err != nil {
		respondDownloadError(c, err)
		return
	}
	defer auth.Stream.Close()

	requestLog(c).Infow("design_file_download",
		"user_id", uid,
		"file_id", auth.File.ID,
		"grant_id", auth.Grant.ID,
	)

	contentType := strings.TrimSpace(auth.File.MimeType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", auth.File.Name),
	}
	c.DataFromReader(http.StatusOK, auth.Size, contentType, auth.Stream, headers)
}
