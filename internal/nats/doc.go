// Package nats lets a rig be driven and observed over NATS.
//
// # Architecture
//
//   - Server: optional embedded NATS server for rigs without a broker nearby
//   - Controller: a driver.Controller that maps command subjects onto the driver
//   - Bridge: forwards mode, state, transition and fault events from the event bus
//
// # Subject Hierarchy
//
//	paws.{device}.mode.set         # switch mode (request/reply)
//	paws.{device}.mode.get         # current mode and mode list (request/reply)
//	paws.{device}.state.set        # switch state of the active state handler (request/reply)
//	paws.{device}.state.get        # current state and state list (request/reply)
//	paws.{device}.draw             # whole raw frame for the active drawer
//	paws.{device}.draw.fragment    # frame fragment, an empty payload restarts the frame
//	paws.{device}.events.{kind}    # mode, state, transition, fault events
//
// Commands accept either {"name":"..."} or the bare name as payload. Draw subjects carry raw
// RGB bytes. Replies are only sent when the publisher asked for one.
//
// # Debugging with nats CLI
//
// Watch everything a rig publishes:
//
//	nats sub "paws.>"
//
// Switch modes and states by hand:
//
//	nats req "paws.wolf.mode.set" '{"name":"States"}'
//	nats req "paws.wolf.state.set" happy
//
// Blank a 3-pixel strip:
//
//	printf '\x00\x00\x00\x00\x00\x00\x00\x00\x00' | nats pub "paws.wolf.draw" --force-stdin
//
// # Message Formats
//
// ReplyMessage:
//
//	{
//	  "changed": true,
//	  "current": "happy",
//	  "available": ["idle", "happy"],
//	  "error": ""
//	}
package nats
