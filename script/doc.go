// Package script implements the small line-oriented language that
// processes run.
//
// A program is a sequence of statements, one per line:
//
//	let greeting = "hello"
//	send "ping", greeting, 42
//	recv "pong" -> reply
//	print "got", reply
//	repeat 3 as i
//	    send "tick", i
//	end
//	sleep 10ms
//	start "send \"child\", 1"
//	assert reply == "world"
//	exit
//
// Each Interp has its own variables, so two processes never share
// state. Channel operations go through a Host.
package script
