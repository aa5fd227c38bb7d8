// Command artemisd runs one ARTEMIS-Core process: a control plane fronting
// a single data-worker role (annotator or detector) over the message
// fabric, plus the HTTP surface of spec §6.
package main

func main() {
	Execute()
}
