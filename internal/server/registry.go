// Copyright 2025 Matt Barlow
//
// Tool registry

package server

// registerTools registers all available tools
func (s *MCPServer) registerTools() {
	s.tools = map[string]*Tool{
		// audio
		"play_audio": {
			Name:        "play_audio",
			Description: "Play an audio file through the system output",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path of the audio file to play",
					},
					"volume": map[string]interface{}{
						"type":        "number",
						"description": "Playback volume 0-100 (default: system volume)",
					},
				},
				"required": []string{"path"},
			},
			Handler: s.handlePlayAudio,
		},
		"stop_audio": {
			Name:        "stop_audio",
			Description: "Stop any audio playback started by play_audio",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleStopAudio,
		},
		"set_volume": {
			Name:        "set_volume",
			Description: "Set the system output volume",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"level": map[string]interface{}{
						"type":        "integer",
						"description": "Output volume 0-100",
					},
				},
				"required": []string{"level"},
			},
			Handler: s.handleSetVolume,
		},
		"get_volume": {
			Name:        "get_volume",
			Description: "Get the current system output volume and mute state",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleGetVolume,
		},
		"set_muted": {
			Name:        "set_muted",
			Description: "Mute or unmute the system output",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"muted": map[string]interface{}{
						"type":        "boolean",
						"description": "True to mute, false to unmute",
					},
				},
				"required": []string{"muted"},
			},
			Handler: s.handleSetMuted,
		},

		// speech
		"speak": {
			Name:        "speak",
			Description: "Speak text aloud using text-to-speech",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to speak",
					},
					"voice": map[string]interface{}{
						"type":        "string",
						"description": "System voice name (default: system default voice)",
					},
					"rate": map[string]interface{}{
						"type":        "integer",
						"description": "Speech rate in words per minute, 120-300",
					},
				},
				"required": []string{"text"},
			},
			Handler: s.handleSpeak,
		},
		"list_voices": {
			Name:        "list_voices",
			Description: "List installed text-to-speech voices",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleListVoices,
		},
		"save_speech": {
			Name:        "save_speech",
			Description: "Render text-to-speech to an audio file",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Text to render",
					},
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Output file path (.aiff)",
					},
					"voice": map[string]interface{}{
						"type":        "string",
						"description": "System voice name",
					},
					"rate": map[string]interface{}{
						"type":        "integer",
						"description": "Speech rate in words per minute, 120-300",
					},
				},
				"required": []string{"text", "path"},
			},
			Handler: s.handleSaveSpeech,
		},
		"stop_speech": {
			Name:        "stop_speech",
			Description: "Stop any in-progress text-to-speech",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleStopSpeech,
		},

		// mail
		"send_email": {
			Name:        "send_email",
			Description: "Send an email through Mail.app",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"to": map[string]interface{}{
						"type":        "array",
						"description": "Recipient addresses",
					},
					"subject": map[string]interface{}{
						"type":        "string",
						"description": "Message subject",
					},
					"body": map[string]interface{}{
						"type":        "string",
						"description": "Message body",
					},
					"cc": map[string]interface{}{
						"type":        "array",
						"description": "CC addresses",
					},
					"bcc": map[string]interface{}{
						"type":        "array",
						"description": "BCC addresses",
					},
					"format": map[string]interface{}{
						"type":        "string",
						"description": "Body format",
						"enum":        []string{"plain", "html"},
					},
				},
				"required": []string{"to", "subject", "body"},
			},
			Handler: s.handleSendEmail,
		},
		"list_mail_accounts": {
			Name:        "list_mail_accounts",
			Description: "List accounts configured in Mail.app",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleListMailAccounts,
		},

		// messages
		"send_message": {
			Name:        "send_message",
			Description: "Send an iMessage or SMS through Messages.app",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"recipient": map[string]interface{}{
						"type":        "string",
						"description": "Phone number or Apple ID email",
					},
					"body": map[string]interface{}{
						"type":        "string",
						"description": "Message text",
					},
					"service": map[string]interface{}{
						"type":        "string",
						"description": "Delivery service (default: imessage)",
						"enum":        []string{"imessage", "sms"},
					},
				},
				"required": []string{"recipient", "body"},
			},
			Handler: s.handleSendMessage,
		},
		"list_message_services": {
			Name:        "list_message_services",
			Description: "List accounts configured in Messages.app",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleListMessageServices,
		},

		// notification
		"send_notification": {
			Name:        "send_notification",
			Description: "Post a desktop notification",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title": map[string]interface{}{
						"type":        "string",
						"description": "Notification title",
					},
					"message": map[string]interface{}{
						"type":        "string",
						"description": "Notification body",
					},
					"subtitle": map[string]interface{}{
						"type":        "string",
						"description": "Optional subtitle",
					},
					"sound": map[string]interface{}{
						"type":        "string",
						"description": "System sound name (e.g. Glass)",
					},
				},
				"required": []string{"title", "message"},
			},
			Handler: s.handleSendNotification,
		},

		// scripting
		"run_script": {
			Name:        "run_script",
			Description: "Run a raw script through the execution gateway",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"language": map[string]interface{}{
						"type":        "string",
						"description": "Script language",
						"enum":        []string{"applescript", "jxa", "shell"},
					},
					"source": map[string]interface{}{
						"type":        "string",
						"description": "Script source text",
					},
					"timeout": map[string]interface{}{
						"type":        "integer",
						"description": "Timeout in seconds (default 30)",
					},
				},
				"required": []string{"language", "source"},
			},
			Handler: s.handleRunScript,
		},

		// system
		"health_check": {
			Name:        "health_check",
			Description: "Check scripting runtime reachability and resource headroom",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleHealthCheck,
		},
		"system_info": {
			Name:        "system_info",
			Description: "Report host, CPU, and memory details",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleSystemInfo,
		},
		"performance_report": {
			Name:        "performance_report",
			Description: "Report sliding-window performance statistics and active alerts",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handlePerformanceReport,
		},
		"set_thresholds": {
			Name:        "set_thresholds",
			Description: "Update performance alert thresholds",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"cpu": map[string]interface{}{
						"type":        "number",
						"description": "CPU alert threshold percent, 1-100",
					},
					"memory": map[string]interface{}{
						"type":        "number",
						"description": "Memory alert threshold percent, 1-100",
					},
					"disk": map[string]interface{}{
						"type":        "number",
						"description": "Disk alert threshold percent, 1-100",
					},
				},
			},
			Handler: s.handleSetThresholds,
		},
		"optimization_report": {
			Name:        "optimization_report",
			Description: "Report current resource optimization recommendations",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
			Handler: s.handleOptimizationReport,
		},
	}
}
