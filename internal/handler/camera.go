package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"birdgate/internal/config"
	"birdgate/internal/logger"
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

const (
	udpPacketSize  = 2048
	maxUploadBytes = 8 << 20
)

// FrameSink receives complete camera frames.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string) bool
}

// FrameAssembler rebuilds JPEG frames from camera packets. A packet
// starting with SOI begins a new frame and a packet ending with EOI
// completes it.
type FrameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func NewFrameAssembler() *FrameAssembler {
	return &FrameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// Push appends a packet for camera and returns the completed frame, if any.
func (a *FrameAssembler) Push(camera string, data []byte) []byte {
	imgBuffer, ok := a.buffers[camera]
	if !ok {
		imgBuffer = new(bytes.Buffer)
		a.buffers[camera] = imgBuffer
	}

	if bytes.HasPrefix(data, jpegHeader) {
		imgBuffer.Reset()
	} else if imgBuffer.Len() == 0 {
		// Mid-frame packet without a preceding header.
		return nil
	}
	imgBuffer.Write(data)

	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}
	fullFrame := make([]byte, imgBuffer.Len())
	copy(fullFrame, imgBuffer.Bytes())
	imgBuffer.Reset()
	return fullFrame
}

// CameraName maps a camera IP to its configured name.
func CameraName(cfg *config.Config, ip string) string {
	if name, ok := cfg.CameraNames[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// UDPCameraHandler opens the camera UDP port and forwards complete frames
// to sink in the background. Closing the returned conn stops it.
func UDPCameraHandler(sink FrameSink, logger *logger.Logger, config *config.Config) (net.PacketConn, error) {
	port := strconv.Itoa(config.CamerasPort)

	conn, err := net.ListenPacket("udp", ":"+port)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %s: %w", port, err)
	}

	if udpAddr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		port = strconv.Itoa(udpAddr.Port)
	}
	logger.Info("UDP Camera handler started on port %s", port)
	go ServeUDP(conn, sink, logger, config)
	return conn, nil
}

// ServeUDP reads camera packets from conn until it is closed.
func ServeUDP(conn net.PacketConn, sink FrameSink, logger *logger.Logger, config *config.Config) {
	buffer := make([]byte, udpPacketSize)
	assembler := NewFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Info("UDP Camera handler stopped")
				return
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		ip := remoteAddr.String()
		if udpAddr, ok := remoteAddr.(*net.UDPAddr); ok {
			ip = udpAddr.IP.String()
		}

		camera := CameraName(config, ip)
		if frame := assembler.Push(camera, buffer[:n]); frame != nil {
			sink.HandleCameraImage(frame, camera)
		}
	}
}

// UploadHandler handles POST /camera/upload?camera=NAME with a raw JPEG body.
func UploadHandler(sink FrameSink, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		camera := r.URL.Query().Get("camera")
		if camera == "" {
			http.Error(w, "camera parameter required", http.StatusBadRequest)
			return
		}

		image, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes+1))
		if err != nil {
			logger.Error("Error reading upload from %s: %v", camera, err)
			http.Error(w, "Unable to read body", http.StatusBadRequest)
			return
		}
		if len(image) > maxUploadBytes {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		if !bytes.HasPrefix(image, jpegHeader) {
			http.Error(w, "Body is not a JPEG image", http.StatusUnsupportedMediaType)
			return
		}

		queued := sink.HandleCameraImage(image, camera)
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"camera": camera, "queued": queued}, logger)
	}
}
