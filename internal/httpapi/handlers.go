package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/members/records"
)

type createUserRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Website  string `json:"website"`
	Photo    string `json:"photo"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type profileImageRequest struct {
	Photo string `json:"photo"`
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.accounts.List(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if users == nil {
		users = []records.User{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": users})
}

func (s *Server) getUser(c *gin.Context) {
	u, err := s.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (s *Server) getMe(c *gin.Context) {
	u, err := s.accounts.Me(c.Request.Context(), principal(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (s *Server) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u := &records.User{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Website:  req.Website,
		Photo:    req.Photo,
	}
	created, err := s.accounts.Create(c.Request.Context(), u, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": created})
}

func (s *Server) updateMe(c *gin.Context) {
	s.update(c, principal(c).UserID)
}

func (s *Server) updateUser(c *gin.Context) {
	s.update(c, c.Param("id"))
}

func (s *Server) update(c *gin.Context, id string) {
	var fields records.Patch
	if err := c.ShouldBindJSON(&fields); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := s.accounts.UpdateUser(c.Request.Context(), id, fields)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}

func (s *Server) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.accounts.ChangePassword(c.Request.Context(), principal(c), req.CurrentPassword, req.NewPassword); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) setProfileImage(c *gin.Context) {
	data, err := s.readImage(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	url, err := s.accounts.SetProfileImage(c.Request.Context(), principal(c), data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "photo": url})
}

func (s *Server) clearProfileImage(c *gin.Context) {
	if err := s.accounts.ClearProfileImage(c.Request.Context(), principal(c)); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) deleteUser(c *gin.Context) {
	if err := s.accounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) createRecord(c *gin.Context) {
	coll, err := records.ParseCollection(c.Param("collection"))
	if err != nil {
		abort(c, http.StatusNotFound, err.Error())
		return
	}
	var fields records.Patch
	if err := c.ShouldBindJSON(&fields); err != nil {
		abort(c, http.StatusBadRequest, "invalid request body")
		return
	}
	doc, err := s.accounts.CreateOwned(c.Request.Context(), principal(c), coll, fields)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "record": doc})
}

// readImage accepts a multipart "photo" file, a JSON body whose "photo" is a
// base64 string or data URI, or the raw image bytes.
func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	switch ct := c.ContentType(); {
	case ct == gin.MIMEMultipartPOSTForm:
		fh, err := c.FormFile("photo")
		if err != nil {
			return nil, errors.New("photo file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	case ct == gin.MIMEJSON:
		var req profileImageRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Photo == "" {
			return nil, errors.New("photo is required")
		}
		return decodeDataURI(req.Photo)
	default:
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return nil, errors.New("image too large")
		}
		if len(data) == 0 {
			return nil, errors.New("photo is required")
		}
		return data, nil
	}
}

// decodeDataURI decodes "data:image/png;base64,..." or bare base64.
func decodeDataURI(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 || !strings.HasSuffix(s[:i], ";base64") {
			return nil, errors.New("photo must be base64 encoded")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errors.New("photo must be base64 encoded")
	}
	return data, nil
}
