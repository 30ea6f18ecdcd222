package compile

import (
	"encoding/json"
	"strings"
)

// RuntimePath is the unit path of the shared runtime.
const RuntimePath = "runtime.php"

func eventsJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func phpList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = phpString(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// runtimeBody mirrors the runtime renderer: sb_e escapes the same five
// characters with the same entities as markup.Escape, sb_t resolves keys
// like i18n.Bundle.Lookup and formats misses like i18n.MissingMarker, and
// sb_flag has the truthiness and request fallback of render.Context.Value.
const runtimeBody = `if (!function_exists('sb_e')) {
    function sb_e($s)
    {
        return strtr((string) $s, ['&' => '&amp;', "'" => '&#39;', '<' => '&lt;', '>' => '&gt;', '"' => '&#34;']);
    }

    function sb_flag($name, $lang = '', $route = '')
    {
        if (array_key_exists($name, $GLOBALS['sb_flags'])) {
            return !empty($GLOBALS['sb_flags'][$name]);
        }
        switch ($name) {
            case 'lang':
            case 'language':
                return !empty($lang);
            case 'route':
            case 'page':
                return !empty($route);
        }
        return false;
    }

    function sb_str($v)
    {
        if (is_bool($v)) {
            return $v ? 'true' : 'false';
        }
        return (string) $v;
    }

    function sb_missing($key)
    {
        $format = $GLOBALS['sb_missing'];
        $pos = strpos($format, '%s');
        return $pos === false ? $format : substr_replace($format, $key, $pos, 2);
    }

    function sb_load_translations($lang)
    {
        $path = SB_ROOT . '/translations/' . $lang . '.json';
        if (!is_file($path)) {
            return [];
        }
        $data = json_decode((string) file_get_contents($path), true);
        return is_array($data) ? $data : [];
    }

    function sb_t($key)
    {
        $t = $GLOBALS['sb_translations'];
        if (array_key_exists($key, $t)) {
            return is_scalar($t[$key]) ? sb_str($t[$key]) : sb_missing($key);
        }
        $node = $t;
        foreach (explode('.', $key) as $part) {
            if (!is_array($node) || !array_key_exists($part, $node)) {
                return sb_missing($key);
            }
            $node = $node[$part];
        }
        return is_scalar($node) ? sb_str($node) : sb_missing($key);
    }
}

if (!isset($sb_lang)) {
    $sb_lang = isset($_GET['lang']) ? (string) $_GET['lang'] : $sb_default_language;
}
if (!in_array($sb_lang, $sb_languages, true)) {
    $sb_lang = $sb_default_language;
}
if (!isset($sb_route)) {
    $sb_route = '';
}
if (!isset($GLOBALS['sb_flags']) || !is_array($GLOBALS['sb_flags'])) {
    $GLOBALS['sb_flags'] = [];
}
$GLOBALS['sb_missing'] = $sb_missing;
$GLOBALS['sb_translations'] = $sb_lang === $sb_default_language
    ? sb_load_translations($sb_lang)
    : array_replace_recursive(sb_load_translations($sb_default_language), sb_load_translations($sb_lang));
`

// CompileRuntime returns the PHP prelude every unit requires: request
// language and route, flags, escaping and translation lookup with the
// default language merged underneath.
func CompileRuntime(opts Options) Unit {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	if len(opts.Languages) == 0 {
		opts.Languages = []string{opts.DefaultLanguage}
	}
	var sb strings.Builder
	sb.WriteString("<?php\n")
	sb.WriteString("/* Generated by sitetree " + phpComment(opts.Stamp) + ". Do not edit. */\n")
	sb.WriteString("defined('SB_ROOT') || define('SB_ROOT', __DIR__);\n")
	sb.WriteString("$sb_languages = " + phpList(opts.Languages) + ";\n")
	sb.WriteString("$sb_default_language = " + phpString(opts.DefaultLanguage) + ";\n")
	missing := opts.MissingTranslation
	if missing == "" {
		missing = "[missing: %s]"
	}
	sb.WriteString("$sb_missing = " + phpString(missing) + ";\n")
	sb.WriteString(runtimeBody)
	return Unit{Path: RuntimePath, Source: sb.String()}
}
