package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rocketscienceinc/tictactoe-rooms/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-rooms/internal/repository"
)

func (that *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "pong")
}

func (that *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       that.rooms.Len(),
		"subscribers": that.subscribers.Len(),
	})
}

// handleRoom - last stored snapshot of a room. It may trail the live state.
func (that *Server) handleRoom(c *gin.Context) {
	log := that.logger.With("method", "handleRoom")

	id := c.Param("id")

	snapshot, err := that.snapshots.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "code": "ROOM_NOT_FOUND"})
			return
		}

		log.Error("failed to get room snapshot", "roomID", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// handleDeleteRoom - closes a room for good.
func (that *Server) handleDeleteRoom(c *gin.Context) {
	id := c.Param("id")

	if err := that.closer.DeleteRoom(c.Request.Context(), id); err != nil {
		if errors.Is(err, apperror.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found", "code": "ROOM_NOT_FOUND"})
			return
		}

		that.logger.Error("failed to delete room", "roomID", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
		return
	}

	c.Status(http.StatusNoContent)
}
