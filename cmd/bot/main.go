// A scripted agent for smoke-testing a running server: joins, declares
// itself an AI, wanders east, and mines/places a block each step.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"math"
	"os"
	"time"

	"github.com/gorilla/websocket"

	"aetharia.world/internal/protocol"
)

func main() {
	var (
		url     = flag.String("url", "ws://127.0.0.1:8080/ws", "server websocket url")
		steps   = flag.Int("steps", 60, "number of move steps before exiting")
		verbose = flag.Bool("v", false, "print every received frame")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags)

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial %s: %v", *url, err)
	}
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		logger.Fatalf("read welcome: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(raw, &welcome); err != nil {
		logger.Fatalf("decode welcome: %v", err)
	}
	logger.Printf("joined as %s at (%.1f, %.1f) zone=%s", welcome.ID, welcome.X, welcome.Y, welcome.Zone)

	// Drain inbound frames in the background so the server never backs up.
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if *verbose {
				logger.Printf("<- %s", raw)
			}
		}
	}()

	send := func(v any) {
		if err := conn.WriteJSON(v); err != nil {
			logger.Fatalf("write: %v", err)
		}
		// Respect the server's inbound rate limit.
		time.Sleep(120 * time.Millisecond)
	}

	send(protocol.IdentifyMsg{Type: protocol.TypeIdentify, IsAI: true})
	send(protocol.SetProfileMsg{
		Type:  protocol.TypeSetProfile,
		Name:  strPtr("scout"),
		Color: strPtr("#20C0FF"),
	})

	x := welcome.X
	y := int(math.Round(welcome.Y))
	for i := 0; i < *steps; i++ {
		x++
		send(protocol.MoveMsg{Type: protocol.TypeMove, X: &x, Jump: i%7 == 0})

		bx := int(math.Round(x)) + 2
		send(protocol.PlaceBlockMsg{
			Type: protocol.TypePlaceBlock,
			X:    fPtr(float64(bx)),
			Y:    fPtr(float64(y)),
			Tile: fPtr(2),
		})
		send(protocol.RemoveBlockMsg{
			Type: protocol.TypeRemoveBlock,
			X:    fPtr(float64(bx)),
			Y:    fPtr(float64(y)),
		})

		if i%10 == 0 {
			send(protocol.ChatMsg{Type: protocol.TypeChat, Message: strPtr("surveying")})
		}
	}
	logger.Printf("done")
}

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }
