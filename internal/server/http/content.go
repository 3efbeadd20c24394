package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type postRequest struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type scanRequest struct {
	Question string `form:"question"`
	Response string `form:"response"`
}

// --- posts ---

func (s *HTTPServer) listOwnPosts(c *gin.Context) {
	list, err := s.posts.ListOwn(c.Request.Context(), identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list, "All posts retrieved")
}

func (s *HTTPServer) addPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBind(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	img, err := formImage(c, "image")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	p, err := s.posts.Create(c.Request.Context(), identity(c).ID, req.Title, req.Description, img)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, p, "Post created successfully")
}

func (s *HTTPServer) editPostDetails(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	p, err := s.posts.EditDetails(c.Request.Context(), identity(c).ID, c.Param("id"), req.Title, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, p, "Post updated successfully")
}

func (s *HTTPServer) editPostImage(c *gin.Context) {
	img, err := formImage(c, "image")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	p, err := s.posts.EditImage(c.Request.Context(), identity(c).ID, c.Param("id"), img)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, p, "Post image updated successfully")
}

func (s *HTTPServer) deletePost(c *gin.Context) {
	if err := s.posts.Delete(c.Request.Context(), identity(c).ID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Post deleted successfully")
}

// --- comments ---

func (s *HTTPServer) addComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	cm, err := s.comments.Add(c.Request.Context(), identity(c).ID, c.Param("postId"), req.Content)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, cm, "Comment added successfully")
}

func (s *HTTPServer) listComments(c *gin.Context) {
	list, err := s.comments.ListByPost(c.Request.Context(), c.Param("postId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list, "Comments retrieved")
}

func (s *HTTPServer) deleteComment(c *gin.Context) {
	if err := s.comments.Delete(c.Request.Context(), identity(c).ID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Comment deleted successfully")
}

// --- likes ---

func (s *HTTPServer) toggleLike(c *gin.Context) {
	st, err := s.likes.Toggle(c.Request.Context(), identity(c).ID, c.Param("postId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	msg := "Post unliked"
	if st.Liked {
		msg = "Post liked"
	}
	ok(c, http.StatusOK, st, msg)
}

func (s *HTTPServer) likedPosts(c *gin.Context) {
	ids, err := s.likes.LikedPostIDs(c.Request.Context(), identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, ids, "Liked posts retrieved")
}

// --- scans ---

func (s *HTTPServer) addScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBind(&req); err != nil {
		s.badRequest(c, "malformed body")
		return
	}
	img, err := formImage(c, "image")
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	sc, err := s.scans.Add(c.Request.Context(), identity(c).ID, req.Question, req.Response, img)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, sc, "Scan saved successfully")
}

func (s *HTTPServer) listScans(c *gin.Context) {
	list, err := s.scans.ListOwn(c.Request.Context(), identity(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, list, "All scans retrieved")
}

func (s *HTTPServer) deleteScan(c *gin.Context) {
	if err := s.scans.Delete(c.Request.Context(), identity(c).ID, c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	ok(c, http.StatusOK, nil, "Scan deleted successfully")
}
