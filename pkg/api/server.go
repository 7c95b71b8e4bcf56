// Package api provides the REST API server for midilib
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/midilib/pkg/converter"
	"github.com/james-see/midilib/pkg/smf"
)

// MaxUploadSize bounds the size of uploaded files.
const MaxUploadSize = 8 << 20

// @title midilib API
// @version 1.0
// @description API for inspecting, validating and converting Standard MIDI Files
// @host localhost:8080
// @BasePath /api/v1

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	return NewRouter().Run(fmt.Sprintf(":%d", port))
}

// NewRouter builds the gin engine with every route registered.
func NewRouter() *gin.Engine {
	r := gin.Default()
	r.MaxMultipartMemory = MaxUploadSize

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/inspect", handleInspect)
		v1.POST("/validate", handleValidate)
		v1.POST("/normalize", handleNormalize)
		v1.POST("/convert/midi2yaml", handleMIDIToYAML)
		v1.POST("/convert/yaml2midi", handleYAMLToMIDI)
		v1.GET("/formats", listFormats)
		v1.GET("/messages", listMessages)
		v1.GET("/encodings", listEncodings)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midilib",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatMIDI), string(converter.FormatYAML)},
		"conversions": converter.GetSupportedConversions(),
	})
}

// listMessages godoc
// @Summary List message kinds
// @Description Returns the message kinds and meta types the codec understands
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]map[string]string
// @Router /api/v1/messages [get]
func listMessages(c *gin.Context) {
	kinds := []smf.Kind{
		smf.KindNoteOff, smf.KindNoteOn, smf.KindAfterTouch, smf.KindController,
		smf.KindPatch, smf.KindPressure, smf.KindPitchBend, smf.KindMeta,
	}
	messages := make([]map[string]string, 0, len(kinds))
	for _, k := range kinds {
		messages = append(messages, map[string]string{
			"name":   k.String(),
			"status": fmt.Sprintf("%#02x", byte(k)),
		})
	}

	metas := []smf.MetaType{
		smf.MetaSequenceNumber, smf.MetaText, smf.MetaCopyright, smf.MetaTrackName,
		smf.MetaInstrumentName, smf.MetaLyric, smf.MetaMarker, smf.MetaCuePoint,
		smf.MetaChannelPrefix, smf.MetaEndOfTrack, smf.MetaTempo, smf.MetaSMPTEOffset,
		smf.MetaTimeSignature, smf.MetaKeySignature, smf.MetaSequencerSpecific,
	}
	metaTypes := make([]map[string]string, 0, len(metas))
	for _, t := range metas {
		metaTypes = append(metaTypes, map[string]string{
			"name": t.String(),
			"type": fmt.Sprintf("%#02x", byte(t)),
		})
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "meta": metaTypes})
}

// listEncodings godoc
// @Summary List text encodings
// @Description Returns the encodings accepted for text meta events
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/encodings [get]
func listEncodings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"encodings": converter.TextEncodings()})
}

// handleInspect godoc
// @Summary Inspect a MIDI file
// @Description Upload a MIDI file and receive a summary of its tracks
// @Tags midi
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Param lenient query bool false "Retry running-status files through gomidi"
// @Success 200 {object} converter.Summary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/inspect [post]
func handleInspect(c *gin.Context) {
	data, _, ok := readUpload(c)
	if !ok {
		return
	}
	conv, ok := converterFor(c)
	if !ok {
		return
	}
	res, err := conv.Load(data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, converter.Summarize(res.File))
}

// handleValidate godoc
// @Summary Validate a MIDI file
// @Description Parses the upload and checks it can be written back
// @Tags midi
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/validate [post]
func handleValidate(c *gin.Context) {
	data, _, ok := readUpload(c)
	if !ok {
		return
	}
	conv, ok := converterFor(c)
	if !ok {
		return
	}
	res, err := conv.Load(data)
	if err == nil {
		err = res.File.Validate()
	}
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"tracks":  res.File.TrackCount(),
		"lenient": res.Lenient,
		"dropped": res.Dropped,
	})
}

// handleNormalize godoc
// @Summary Normalize a MIDI file
// @Description Re-serializes the upload without running status
// @Tags midi
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI file"
// @Param lenient query bool false "Retry running-status files through gomidi"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/normalize [post]
func handleNormalize(c *gin.Context) {
	handleConversion(c, (*converter.Converter).Normalize, ".mid", "audio/midi")
}

// handleMIDIToYAML godoc
// @Summary Convert MIDI to YAML
// @Description Upload a MIDI file and receive a YAML song document
// @Tags convert
// @Accept multipart/form-data
// @Produce application/x-yaml
// @Param file formData file true "MIDI file to convert"
// @Param encoding query string false "Text meta encoding (default: utf8)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert/midi2yaml [post]
func handleMIDIToYAML(c *gin.Context) {
	handleConversion(c, (*converter.Converter).MIDIToYAML, ".yaml", "application/x-yaml")
}

// handleYAMLToMIDI godoc
// @Summary Convert YAML to MIDI
// @Description Upload a YAML song document and receive a MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "YAML song to compose"
// @Param encoding query string false "Text meta encoding (default: utf8)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/convert/yaml2midi [post]
func handleYAMLToMIDI(c *gin.Context) {
	handleConversion(c, (*converter.Converter).YAMLToMIDI, ".mid", "audio/midi")
}

type conversion func(conv *converter.Converter, data []byte) ([]byte, error)

func handleConversion(c *gin.Context, convert conversion, outputExt, contentType string) {
	data, filename, ok := readUpload(c)
	if !ok {
		return
	}
	conv, ok := converterFor(c)
	if !ok {
		return
	}

	result, err := convert(conv, data)
	if err != nil {
		abortWithError(c, err)
		return
	}

	// Generate output filename
	outputName := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if outputName == "" || outputName == "." {
		outputName = "converted"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName+outputExt))
	c.Data(http.StatusOK, contentType, result)
}

func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", false
	}
	return data, header.Filename, true
}

func converterFor(c *gin.Context) (*converter.Converter, bool) {
	opts := converter.Options{TextEncoding: c.Query("encoding")}
	if v := c.Query("lenient"); v != "" {
		lenient, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lenient must be a boolean"})
			return nil, false
		}
		opts.Lenient = lenient
	}
	if _, err := converter.TextEncoding(opts.TextEncoding); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return converter.New(opts), true
}

// abortWithError maps codec errors to 422 and anything else to 400.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, smf.ErrFormat) || errors.Is(err, smf.ErrUnsupportedMessage) || errors.Is(err, smf.ErrValidation) {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
