package mxp

// Action identifies what an element does when it executes. The numbering
// follows the classic MUSHclient table so diagnostics stay comparable with
// other clients.
type Action int

const (
	ActionNone Action = iota - 1
	ActionSend
	ActionBold
	ActionUnderline
	ActionItalic
	ActionColor
	ActionVersion
	ActionFont
	ActionSound
	ActionUser
	ActionPassword
	ActionRelocate
	ActionFrame
	ActionDest
	ActionImage
	ActionFilter
	ActionHyperlink
	ActionBr
	ActionH1
	ActionH2
	ActionH3
	ActionH4
	ActionH5
	ActionH6
	ActionHr
	ActionNoBr
	ActionP
	ActionStrike
	ActionScript
	ActionSmall
	ActionTT
	ActionUl
	ActionOl
	ActionLi
	ActionSamp
	ActionCenter
	ActionHigh
	ActionVar
	ActionAFK
	ActionGauge
	ActionStat
	ActionExpire
	ActionReset
	ActionMXP
	ActionSupport
	ActionOption
	ActionRecommendOption
	ActionPre
	ActionBody
	ActionHead
	ActionHTML
	ActionTitle
	ActionImg
	ActionXchPage
	ActionXchPane
)
