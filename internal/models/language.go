package models

// Language constants
const (
	LangSimplifiedChinese  = "zh_CN"
	LangTraditionalChinese = "zh_TW"
	LangEnglish            = "en"
)

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangSimplifiedChinese: {
		"project":            "项目编号",
		"group_name":         "群组名称",
		"group_id":           "群组 ID",
		"user_id":            "用户 ID",
		"channel_id":         "频道 ID",
		"admin_id":           "管理员",
		"action":             "执行操作",
		"level":              "操作等级",
		"rule":               "规则",
		"reason":             "原因",
		"evidence":           "证据",
		"message_id":         "消息 ID",
		"status":             "状态",
		"result":             "结果",
		"triggered_by":       "触发消息",
		"more":               "附加信息",
		"action_ban":         "封禁用户",
		"action_restrict":    "禁言用户",
		"action_delete":      "删除消息",
		"action_unban":       "解禁用户",
		"action_unrestrict":  "解除禁言",
		"action_forgive":     "自动解禁",
		"action_leave":       "退出群组",
		"action_request":     "请求退出",
		"action_config":      "更改设置",
		"action_reset":       "数据重置",
		"action_refresh":     "刷新群管列表",
		"action_hide":        "切换隐藏模式",
		"action_test":        "测试消息",
		"action_restore":     "恢复数据",
		"table":              "数据表",
		"reason_admins":      "获取管理员列表失败",
		"status_joined":      "已加入群组",
		"status_left":        "已退出群组",
		"status_approved":    "已批准退出该群组",
		"status_hidden":      "已进入隐藏模式",
		"status_visible":     "已退出隐藏模式",
		"config_create":      "创建设置会话",
		"level_global":       "全局封禁",
		"level_subscribe":    "订阅封禁",
		"rule_forgive":       "三个群组解禁",
		"rule_help":          "协助封禁",
		"rule_manual":        "手动操作",
		"rule_bad_user":      "黑名单用户",
		"rule_bad_forward":   "转发黑名单用户",
		"rule_bad_channel":   "黑名单频道",
		"rule_watch_ban":     "追踪封禁",
		"rule_watch_delete":  "追踪删除",
		"rule_join":          "黑名单用户入群",
		"reason_user":        "缺失 USER",
		"reason_permissions": "权限缺失",
		"reason_left":        "已被移除",
		"succeeded":          "成功",
		"failed":             "失败",
		"enabled":            "✅ 启用",
		"disabled":           "❌ 禁用",

		"config_title":       "群组设置",
		"config_locked":      "设置会话进行中，请稍后再试",
		"config_link":        "设置链接",
		"config_description": "请在 5 分钟内完成设置",
		"config_changed":     "设置已更新",
		"config_default":     "已恢复默认设置",
		"config_invalid":     "命令格式有误",
		"config_show":        "当前设置",
		"flag_delete":        "协助删除",
		"flag_gb":            "全局封禁",
		"flag_gr":            "全局禁言",
		"flag_gd":            "全局删除",
		"flag_sb":            "订阅封禁",
		"flag_sr":            "订阅禁言",
		"flag_sd":            "订阅删除",

		"cmd_desc_config":      "请求设置会话",
		"cmd_desc_config_user": "直接修改设置",
		"cmd_desc_version":     "查看版本",
		"version":              "版本",
		"uptime":               "运行时间",
		"processed":            "已处理",
		"expired":              "已过期",
	},
	LangEnglish: {
		"project":            "Project",
		"group_name":         "Group Name",
		"group_id":           "Group ID",
		"user_id":            "User ID",
		"channel_id":         "Channel ID",
		"admin_id":           "Admin",
		"action":             "Action",
		"level":              "Level",
		"rule":               "Rule",
		"reason":             "Reason",
		"evidence":           "Evidence",
		"message_id":         "Message ID",
		"status":             "Status",
		"result":             "Result",
		"triggered_by":       "Triggered By",
		"more":               "Extra Info",
		"action_ban":         "Ban User",
		"action_restrict":    "Restrict User",
		"action_delete":      "Delete Messages",
		"action_unban":       "Unban User",
		"action_unrestrict":  "Unrestrict User",
		"action_forgive":     "Auto Unban",
		"action_leave":       "Leave Group",
		"action_request":     "Request Leave",
		"action_config":      "Change Config",
		"action_reset":       "Data Reset",
		"action_refresh":     "Refresh Admins",
		"action_hide":        "Toggle Hidden Mode",
		"action_test":        "Test Message",
		"action_restore":     "Restore Data",
		"table":              "Table",
		"reason_admins":      "Failed to fetch admins",
		"status_joined":      "Joined the group",
		"status_left":        "Left the group",
		"status_approved":    "Approved leaving the group",
		"status_hidden":      "Hidden mode on",
		"status_visible":     "Hidden mode off",
		"config_create":      "Create settings session",
		"level_global":       "Global Ban",
		"level_subscribe":    "Subscription Ban",
		"rule_forgive":       "Forgiven by three groups",
		"rule_help":          "Sibling Request",
		"rule_manual":        "Manual",
		"rule_bad_user":      "Blacklisted user",
		"rule_bad_forward":   "Forwarded from blacklisted user",
		"rule_bad_channel":   "Blacklisted channel",
		"rule_watch_ban":     "Watched for ban",
		"rule_watch_delete":  "Watched for deletion",
		"rule_join":          "Blacklisted user joined",
		"reason_user":        "USER missing",
		"reason_permissions": "Missing permissions",
		"reason_left":        "Removed",
		"succeeded":          "Succeeded",
		"failed":             "Failed",
		"enabled":            "✅ Enabled",
		"disabled":           "❌ Disabled",

		"config_title":       "Group Settings",
		"config_locked":      "A settings session is in progress, try again later",
		"config_link":        "Settings link",
		"config_description": "Please finish within 5 minutes",
		"config_changed":     "Settings updated",
		"config_default":     "Settings reset to default",
		"config_invalid":     "Invalid command",
		"config_show":        "Current settings",
		"flag_delete":        "Assist deletion",
		"flag_gb":            "Global ban",
		"flag_gr":            "Global restrict",
		"flag_gd":            "Global delete",
		"flag_sb":            "Subscription ban",
		"flag_sr":            "Subscription restrict",
		"flag_sd":            "Subscription delete",

		"cmd_desc_config":      "Request a settings session",
		"cmd_desc_config_user": "Change settings directly",
		"cmd_desc_version":     "Show version",
		"version":              "Version",
		"uptime":               "Uptime",
		"processed":            "Processed",
		"expired":              "Expired",
	},
}

// DefaultLanguage is used for every text the bot writes.
var DefaultLanguage = LangSimplifiedChinese

// T translates key in DefaultLanguage.
func T(key string) string {
	return GetTranslation(DefaultLanguage, key)
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	// Default to Simplified Chinese if language not supported
	if _, ok := Translations[lang]; !ok {
		lang = LangSimplifiedChinese
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to Simplified Chinese if key not found in specified language
	if translation, ok := Translations[LangSimplifiedChinese][key]; ok {
		return translation
	}

	return key
}
