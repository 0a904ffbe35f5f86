package apiserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/crowdsecurity/sqlitrace/pkg/cache"
	"github.com/crowdsecurity/sqlitrace/pkg/logrecord"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
)

// form field carrying the log export
const uploadField = "file"

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}

	return strings.Contains(err.Error(), "request body too large")
}

func abortWithError(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"message": err.Error()})
}

// analyze handles the upload of a log export. The content is spooled to a
// temporary file which is removed once the summary is computed. Identical
// uploads are answered from the result cache.
func (s *APIServer) analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadSize)

	fh, err := c.FormFile(uploadField)

	switch {
	case err != nil && isBodyTooLarge(err):
		abortWithError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.maxUploadSize))
		return
	case err != nil:
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("no %q file in the request: %w", uploadField, err))
		return
	case fh.Filename == "":
		abortWithError(c, http.StatusBadRequest, errors.New("no selected file"))
		return
	}

	format, gzipped, err := logrecord.DetectFormat(fh.Filename)
	if q := c.Query("format"); q != "" {
		format = q
	} else if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	spool, err := os.CreateTemp("", "sqlitrace-upload-*")
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Errorf("unable to spool upload: %w", err))
		return
	}

	spool.Close()
	defer os.Remove(spool.Name())

	if err = c.SaveUploadedFile(fh, spool.Name()); err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Errorf("unable to spool upload: %w", err))
		return
	}

	content, err := os.ReadFile(spool.Name())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, fmt.Errorf("unable to spool upload: %w", err))
		return
	}

	logger := s.logger.WithField(requestIDKey, c.GetString(requestIDKey))

	key := cache.Key([]byte(format), []byte(strconv.FormatBool(gzipped)), content)

	if view, ok := s.results.Get(key); ok {
		logger.Debugf("%s: cached result", fh.Filename)
		c.JSON(http.StatusOK, view)

		return
	}

	campaign, err := s.analyzer.Reader(bytes.NewReader(content), format, gzipped)
	if err != nil {
		logger.Debugf("rejecting %s: %s", fh.Filename, err)
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("while loading %s: %w", fh.Filename, err))

		return
	}

	view := report.NewView(campaign.Summary())
	s.results.Set(key, view)

	c.JSON(http.StatusOK, view)
}
