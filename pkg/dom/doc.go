// Package dom is the document side of spindle.
//
// Components build a tree of node wrappers (Element, Text, Comment and the
// reactive regions Dynamic and List). A wrapper never touches a real document
// directly. Every mutation becomes a Command that the Document validates,
// records and hands to a Driver in emission order. The live driver forwards
// commands to a browser; the headless driver replays them into a tree and
// serializes it.
//
// Wrappers own their children. Dropping a wrapper removes its node and then
// tears down its children, its subscriptions and its cleanups, in that order.
// Once a node is removed the Document rejects further commands aimed at it or
// at any of its descendants.
//
// A Document is bound to one application loop and is not safe for concurrent
// use.
package dom
