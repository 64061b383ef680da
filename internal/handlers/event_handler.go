package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/joshua-takyi/eventhub/internal/helpers"
	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/services"
)

var eventFields = []string{"title", "description", "date", "location", "category", "maxAttendees"}

func SearchEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		events, err := es.Search(c.Request.Context(), c.Query("search"), c.Query("location"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func ListEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := services.ListParams{Category: c.Query("category")}

		var err error
		if params.Page, err = queryInt(c, "page"); err != nil {
			badRequest(c, err.Error())
			return
		}
		if params.PageSize, err = queryInt(c, "limit"); err != nil {
			badRequest(c, err.Error())
			return
		}
		if raw := c.Query("date"); raw != "" {
			minDate, err := helpers.ParseDate(raw)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			params.MinDate = &minDate
		}

		page, err := es.List(c.Request.Context(), params)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func GetEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		event, err := es.GetByID(c.Request.Context(), helpers.StringTrim(c.Param("id")))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

// CreateEvent accepts a multipart form (with an optional "image" file) or a JSON body.
func CreateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}

		fields, err := readEventFields(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		input, err := createInput(fields)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		image, closeImage, err := readImage(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		defer closeImage()

		event, err := es.Create(c.Request.Context(), input, user.UserID, image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

// UpdateEvent applies only the fields present in the request.
func UpdateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}

		fields, err := readEventFields(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		changes, err := eventChanges(fields)
		if err != nil {
			badRequest(c, err.Error())
			return
		}

		image, closeImage, err := readImage(c)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		defer closeImage()

		event, err := es.Update(c.Request.Context(), helpers.StringTrim(c.Param("id")), changes, user.UserID, image)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func DeleteEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}
		if err := es.Delete(c.Request.Context(), helpers.StringTrim(c.Param("id")), user.UserID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.MessageResponse{Message: "Event removed"})
	}
}

func JoinEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}
		event, err := es.Join(c.Request.Context(), helpers.StringTrim(c.Param("id")), user.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func LeaveEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := helpers.CurrentUser(c)
		if !ok {
			respondError(c, services.ErrUnauthenticated)
			return
		}
		event, err := es.Leave(c.Request.Context(), helpers.StringTrim(c.Param("id")), user.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, event)
	}
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

// readEventFields collects the submitted event fields from a form or a JSON body.
// Absent fields are left out of the map.
func readEventFields(c *gin.Context) (map[string]string, error) {
	fields := make(map[string]string)

	if c.ContentType() == binding.MIMEJSON {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		for _, name := range eventFields {
			switch v := body[name].(type) {
			case nil:
			case string:
				fields[name] = v
			case float64:
				fields[name] = strconv.FormatFloat(v, 'f', -1, 64)
			default:
				return nil, fmt.Errorf("%s must be a string or a number", name)
			}
		}
		return fields, nil
	}

	for _, name := range eventFields {
		if v, ok := c.GetPostForm(name); ok {
			fields[name] = v
		}
	}
	return fields, nil
}

func createInput(fields map[string]string) (services.CreateEventInput, error) {
	input := services.CreateEventInput{
		Title:       fields["title"],
		Description: fields["description"],
		Location:    fields["location"],
		Category:    fields["category"],
	}
	if raw, ok := fields["date"]; ok && strings.TrimSpace(raw) != "" {
		date, err := helpers.ParseDate(raw)
		if err != nil {
			return input, err
		}
		input.Date = date
	}
	if raw, ok := fields["maxAttendees"]; ok && strings.TrimSpace(raw) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return input, fmt.Errorf("maxAttendees must be an integer")
		}
		input.MaxAttendees = n
	}
	return input, nil
}

func eventChanges(fields map[string]string) (models.EventChanges, error) {
	var changes models.EventChanges
	text := func(name string) *string {
		if v, ok := fields[name]; ok {
			return &v
		}
		return nil
	}
	changes.Title = text("title")
	changes.Description = text("description")
	changes.Location = text("location")
	changes.Category = text("category")

	if raw, ok := fields["date"]; ok {
		date, err := helpers.ParseDate(raw)
		if err != nil {
			return changes, err
		}
		changes.Date = &date
	}
	if raw, ok := fields["maxAttendees"]; ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return changes, fmt.Errorf("maxAttendees must be an integer")
		}
		changes.MaxAttendees = &n
	}
	return changes, nil
}

// readImage opens the optional "image" upload. The returned func closes it.
func readImage(c *gin.Context) (*models.ImageUpload, func(), error) {
	noop := func() {}

	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, noop, nil
		}
		return nil, noop, fmt.Errorf("invalid image upload: %w", err)
	}
	if fh.Size > helpers.MaxImageSize {
		return nil, noop, fmt.Errorf("image must be at most %dMB", helpers.MaxImageSize/(1024*1024))
	}
	contentType := fh.Header.Get("Content-Type")
	if !helpers.IsImageContentType(contentType) {
		return nil, noop, fmt.Errorf("image must be an image file, got %q", contentType)
	}

	file, err := fh.Open()
	if err != nil {
		return nil, noop, fmt.Errorf("failed to read image: %w", err)
	}
	return &models.ImageUpload{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        file,
	}, func() { _ = file.Close() }, nil
}
